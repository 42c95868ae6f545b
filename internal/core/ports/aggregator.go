package ports

import (
	"context"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Submission statuses reported by the aggregator for an in-flight swap.
const (
	SwapTrackingPending SwapTrackingStatus = "pending"
	SwapTrackingSettled SwapTrackingStatus = "settled"
	SwapTrackingFailed  SwapTrackingStatus = "failed"
	SwapTrackingUnknown SwapTrackingStatus = "unknown"
)

type SwapTrackingStatus string

// QuoteRequest describes a requested conversion for the aggregator to price.
type QuoteRequest struct {
	FromChain   domain.Chain
	ToChain     domain.Chain
	FromAsset   string
	ToAsset     string
	Amount      decimal.Decimal
	SlippagePct decimal.Decimal
}

// SwapTracking is the aggregator's view of an in-flight swap, polled until
// settlement.
type SwapTracking struct {
	Status   SwapTrackingStatus
	DestTxID string
	Error    string
}

// UnsignedTx is the chain-specific transaction payload built by the
// aggregator for the wallet to sign. EVM chains populate the structured
// fields, the other chains carry an opaque serialized payload in Raw.
type UnsignedTx struct {
	Chain    domain.Chain
	From     string
	To       string
	Value    string
	Data     []byte
	GasLimit uint64
	GasPrice string
	Raw      []byte
}

// Aggregator is the abstraction for the external liquidity-aggregation
// service pricing and routing cross-chain swaps. Implementations retry
// timeouts and 5xx-class failures with bounded backoff, 4xx-class failures
// are never retried.
type Aggregator interface {
	// Quote asks the aggregator to price the given request. Returns
	// domain.ErrNoRouteFound if no viable route exists.
	Quote(ctx context.Context, req QuoteRequest) (*domain.SwapQuote, error)
	// CreateTransaction asks the aggregator to build the source chain
	// transaction for a previously returned quote.
	CreateTransaction(
		ctx context.Context, requestID, userAddress, destinationAddress string,
	) (*UnsignedTx, error)
	// Status returns the aggregator's tracking info for the given request,
	// identified by its id and the source chain transaction funding it.
	Status(ctx context.Context, requestID, txID string) (*SwapTracking, error)
}
