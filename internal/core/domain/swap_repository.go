package domain

import "context"

const (
	SwapExecutionCreated SwapEventType = iota
	SwapExecutionQuoted
	SwapExecutionConfirmed
	SwapExecutionSubmitted
	SwapExecutionAwaitingDestination
	SwapExecutionSettled
	SwapExecutionFailed
	SwapExecutionExpired
)

var swapTypeString = map[SwapEventType]string{
	SwapExecutionCreated:             "SwapExecutionCreated",
	SwapExecutionQuoted:              "SwapExecutionQuoted",
	SwapExecutionConfirmed:           "SwapExecutionConfirmed",
	SwapExecutionSubmitted:           "SwapExecutionSubmitted",
	SwapExecutionAwaitingDestination: "SwapExecutionAwaitingDestination",
	SwapExecutionSettled:             "SwapExecutionSettled",
	SwapExecutionFailed:              "SwapExecutionFailed",
	SwapExecutionExpired:             "SwapExecutionExpired",
}

type SwapEventType int

func (t SwapEventType) String() string {
	return swapTypeString[t]
}

// SwapEvent holds info about an event occured within the repository.
type SwapEvent struct {
	EventType SwapEventType
	Execution *SwapExecution
}

// SwapRepository is the abstraction for any kind of database intended to
// persist SwapExecutions. The history is append-only: executions are never
// deleted, only updated through state transitions.
type SwapRepository interface {
	// AddSwapExecution stores a new execution by preventing duplicates.
	// Generates a SwapExecutionCreated event if successful.
	AddSwapExecution(ctx context.Context, execution *SwapExecution) error
	// GetSwapExecution returns the execution with the given id.
	GetSwapExecution(ctx context.Context, id string) (*SwapExecution, error)
	// UpdateSwapExecution allows to commit multiple changes to the same
	// execution in a transactional way. An event matching the resulting
	// status is generated if the status changed.
	UpdateSwapExecution(
		ctx context.Context, id string,
		updateFn func(s *SwapExecution) (*SwapExecution, error),
	) error
	// GetSwapExecutionsForWallet returns the full swap history of a wallet.
	GetSwapExecutionsForWallet(
		ctx context.Context, walletID string,
	) ([]SwapExecution, error)
	// GetPendingSwapExecutions returns every execution in a non-terminal
	// state, used to resume tracking after a restart.
	GetPendingSwapExecutions(ctx context.Context) ([]SwapExecution, error)
	// GetEventChannel returns the channel of SwapEvents.
	GetEventChannel() chan SwapEvent
}
