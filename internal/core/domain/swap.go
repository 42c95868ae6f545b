package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SwapQuoting SwapStatus = iota
	SwapQuoted
	SwapAwaitingSignature
	SwapSubmittedSource
	SwapAwaitingDestination
	SwapSettled
	SwapFailed
	SwapExpired
)

// Failure reasons recorded on executions entering SwapFailed.
const (
	ReasonNoRouteFound          FailureReason = "NoRouteFound"
	ReasonAggregatorUnavailable FailureReason = "AggregatorUnavailable"
	ReasonSubmissionFailed      FailureReason = "SubmissionFailed"
	ReasonDestinationTimeout    FailureReason = "DestinationTimeout"
	ReasonBridgeFailed          FailureReason = "BridgeFailed"
	ReasonSigningFailed         FailureReason = "SigningFailed"
	ReasonCustodyFailed         FailureReason = "CustodyFailed"
)

var (
	ErrSwapNotFound  = fmt.Errorf("swap execution not found")
	ErrSwapFinalized = fmt.Errorf("swap execution reached a terminal state")

	swapStatusString = map[SwapStatus]string{
		SwapQuoting:             "QUOTING",
		SwapQuoted:              "QUOTED",
		SwapAwaitingSignature:   "AWAITING_SIGNATURE",
		SwapSubmittedSource:     "SUBMITTED_SOURCE",
		SwapAwaitingDestination: "AWAITING_DESTINATION",
		SwapSettled:             "SETTLED",
		SwapFailed:              "FAILED",
		SwapExpired:             "EXPIRED",
	}

	allowedTransitions = map[SwapStatus][]SwapStatus{
		SwapQuoting:             {SwapQuoted, SwapFailed},
		SwapQuoted:              {SwapAwaitingSignature, SwapExpired, SwapFailed},
		SwapAwaitingSignature:   {SwapSubmittedSource, SwapFailed},
		SwapSubmittedSource:     {SwapAwaitingDestination, SwapFailed},
		SwapAwaitingDestination: {SwapSettled, SwapFailed},
	}
)

type SwapStatus int

func (s SwapStatus) String() string {
	return swapStatusString[s]
}

// IsFinal returns whether the status admits no further transition.
func (s SwapStatus) IsFinal() bool {
	switch s {
	case SwapSettled, SwapFailed, SwapExpired:
		return true
	default:
		return false
	}
}

type FailureReason string

// SwapQuote is a priced, time-bounded offer from the aggregator. A quote is
// valid for execution strictly before its expiry, an expired quote must be
// refreshed, never reused.
type SwapQuote struct {
	RequestID   string
	FromChain   Chain
	ToChain     Chain
	FromAsset   string
	ToAsset     string
	AmountIn    decimal.Decimal
	AmountOut   decimal.Decimal
	FeeAmount   decimal.Decimal
	FeeAsset    string
	Route       []string
	SlippagePct decimal.Decimal
	ExpiresAt   time.Time
}

func (q SwapQuote) IsExpired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// StatusChange is one entry of the append-only transition history of a swap
// execution.
type StatusChange struct {
	Status    SwapStatus
	Timestamp time.Time
}

// SwapExecution is the persisted record of an attempted swap. It is created
// when quoting begins, mutated only through its transition methods, and
// retained indefinitely, a failed record after fund departure is the only
// trace of funds in flight and must never be dropped.
type SwapExecution struct {
	ID                 string
	WalletID           string
	Quote              SwapQuote
	Status             SwapStatus
	SourceTxID         string
	DestTxID           string
	DestinationAddress string
	FailureReason      FailureReason
	LastError          string
	History            []StatusChange
	CreatedAt          time.Time
}

// NewSwapExecution returns a new execution in SwapQuoting state.
func NewSwapExecution(walletID, destinationAddress string) *SwapExecution {
	now := time.Now()
	return &SwapExecution{
		ID:                 uuid.NewString(),
		WalletID:           walletID,
		Status:             SwapQuoting,
		DestinationAddress: destinationAddress,
		History:            []StatusChange{{SwapQuoting, now}},
		CreatedAt:          now,
	}
}

// SetQuoted attaches the priced route returned by the aggregator.
func (s *SwapExecution) SetQuoted(quote SwapQuote) error {
	if err := s.transitionTo(SwapQuoted); err != nil {
		return err
	}
	s.Quote = quote
	return nil
}

// Expire marks a quoted execution whose validity window elapsed before
// confirmation. Execution must not proceed with a stale price.
func (s *SwapExecution) Expire() error {
	return s.transitionTo(SwapExpired)
}

// Confirm moves a quoted execution to SwapAwaitingSignature, enforcing the
// quote validity window.
func (s *SwapExecution) Confirm(now time.Time) error {
	if s.Status == SwapQuoted && s.Quote.IsExpired(now) {
		if err := s.transitionTo(SwapExpired); err != nil {
			return err
		}
		return ErrQuoteExpired
	}
	return s.transitionTo(SwapAwaitingSignature)
}

// SetSubmitted records the source chain transaction id once the signed
// payload has been accepted by the source chain.
func (s *SwapExecution) SetSubmitted(sourceTxID string) error {
	if len(sourceTxID) <= 0 {
		return fmt.Errorf("missing source tx id")
	}
	if err := s.transitionTo(SwapSubmittedSource); err != nil {
		return err
	}
	s.SourceTxID = sourceTxID
	return nil
}

// SetAwaitingDestination marks the source transaction as confirmed, from now
// on funds have irreversibly left the source chain.
func (s *SwapExecution) SetAwaitingDestination() error {
	return s.transitionTo(SwapAwaitingDestination)
}

// Settle records the destination transaction observed delivered.
func (s *SwapExecution) Settle(destTxID string) error {
	if len(destTxID) <= 0 {
		return fmt.Errorf("missing destination tx id")
	}
	if err := s.transitionTo(SwapSettled); err != nil {
		return err
	}
	s.DestTxID = destTxID
	return nil
}

// Fail moves the execution to the terminal SwapFailed state with the given
// reason. The record is retained for audit and possible escalation.
func (s *SwapExecution) Fail(reason FailureReason, cause error) error {
	if err := s.transitionTo(SwapFailed); err != nil {
		return err
	}
	s.FailureReason = reason
	if cause != nil {
		s.LastError = cause.Error()
	}
	return nil
}

// IsPending returns whether the execution still needs tracking.
func (s *SwapExecution) IsPending() bool {
	return !s.Status.IsFinal()
}

// StatusChangedAt returns the timestamp of the first transition to the given
// status, if any.
func (s *SwapExecution) StatusChangedAt(status SwapStatus) (time.Time, bool) {
	for _, change := range s.History {
		if change.Status == status {
			return change.Timestamp, true
		}
	}
	return time.Time{}, false
}

func (s *SwapExecution) transitionTo(next SwapStatus) error {
	if s.Status.IsFinal() {
		return fmt.Errorf("%w: %s", ErrSwapFinalized, s.Status)
	}
	allowed := false
	for _, status := range allowedTransitions[s.Status] {
		if status == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf(
			"invalid transition %s -> %s", s.Status, next,
		)
	}
	s.Status = next
	s.History = append(s.History, StatusChange{next, time.Now()})
	return nil
}
