package application

import (
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/shopspring/decimal"
)

// WalletInfo is the displayable view of a wallet, never carrying secret
// material.
type WalletInfo struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Active    bool
	Addresses map[domain.Chain]string
}

func walletInfo(w *domain.Wallet) *WalletInfo {
	return &WalletInfo{
		ID:        w.ID,
		UserID:    w.UserID,
		CreatedAt: w.CreatedAt,
		Active:    w.Active,
		Addresses: w.AddressByChain(),
	}
}

// ChainBalance is the native balance of one wallet account. Chains whose
// node could not be reached report the error instead of a misleading zero.
type ChainBalance struct {
	Chain   domain.Chain
	Address string
	Balance decimal.Decimal
	Error   string
}

// SwapRequest is the user's ask for a cross-chain conversion.
type SwapRequest struct {
	FromChain domain.Chain
	ToChain   domain.Chain
	FromAsset string
	ToAsset   string
	Amount    decimal.Decimal
	// SlippagePct defaults to 1% when zero.
	SlippagePct decimal.Decimal
	// DestinationAddress defaults to the wallet's own account on the
	// destination chain.
	DestinationAddress string
}

// SwapInfo is the displayable view of a swap execution.
type SwapInfo struct {
	ID                 string
	WalletID           string
	Status             string
	FromChain          domain.Chain
	ToChain            domain.Chain
	FromAsset          string
	ToAsset            string
	AmountIn           decimal.Decimal
	AmountOut          decimal.Decimal
	FeeAmount          decimal.Decimal
	FeeAsset           string
	Route              []string
	QuoteExpiresAt     time.Time
	SourceTxID         string
	DestTxID           string
	DestinationAddress string
	FailureReason      string
	LastError          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func swapInfo(s *domain.SwapExecution) *SwapInfo {
	updatedAt := s.CreatedAt
	if len(s.History) > 0 {
		updatedAt = s.History[len(s.History)-1].Timestamp
	}
	return &SwapInfo{
		ID:                 s.ID,
		WalletID:           s.WalletID,
		Status:             s.Status.String(),
		FromChain:          s.Quote.FromChain,
		ToChain:            s.Quote.ToChain,
		FromAsset:          s.Quote.FromAsset,
		ToAsset:            s.Quote.ToAsset,
		AmountIn:           s.Quote.AmountIn,
		AmountOut:          s.Quote.AmountOut,
		FeeAmount:          s.Quote.FeeAmount,
		FeeAsset:           s.Quote.FeeAsset,
		Route:              s.Quote.Route,
		QuoteExpiresAt:     s.Quote.ExpiresAt,
		SourceTxID:         s.SourceTxID,
		DestTxID:           s.DestTxID,
		DestinationAddress: s.DestinationAddress,
		FailureReason:      string(s.FailureReason),
		LastError:          s.LastError,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          updatedAt,
	}
}
