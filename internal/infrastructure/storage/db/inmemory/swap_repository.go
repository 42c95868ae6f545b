package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/harborwallet/harbor/internal/core/domain"
)

var swapEventByStatus = map[domain.SwapStatus]domain.SwapEventType{
	domain.SwapQuoted:              domain.SwapExecutionQuoted,
	domain.SwapAwaitingSignature:   domain.SwapExecutionConfirmed,
	domain.SwapSubmittedSource:     domain.SwapExecutionSubmitted,
	domain.SwapAwaitingDestination: domain.SwapExecutionAwaitingDestination,
	domain.SwapSettled:             domain.SwapExecutionSettled,
	domain.SwapFailed:              domain.SwapExecutionFailed,
	domain.SwapExpired:             domain.SwapExecutionExpired,
}

type swapInmemoryStore struct {
	executions map[string]*domain.SwapExecution
	lock       *sync.RWMutex
}

type swapRepository struct {
	store            *swapInmemoryStore
	chEvents         chan domain.SwapEvent
	externalChEvents chan domain.SwapEvent
	chLock           *sync.Mutex
}

// NewSwapRepository returns a volatile implementation of
// domain.SwapRepository backed by maps, intended for testing purposes.
func NewSwapRepository() domain.SwapRepository {
	return newSwapRepository()
}

func newSwapRepository() *swapRepository {
	return &swapRepository{
		store: &swapInmemoryStore{
			executions: make(map[string]*domain.SwapExecution),
			lock:       &sync.RWMutex{},
		},
		chEvents:         make(chan domain.SwapEvent, 20),
		externalChEvents: make(chan domain.SwapEvent, 20),
		chLock:           &sync.Mutex{},
	}
}

func (r *swapRepository) AddSwapExecution(
	_ context.Context, execution *domain.SwapExecution,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	if _, ok := r.store.executions[execution.ID]; ok {
		return fmt.Errorf("swap execution %s already existing", execution.ID)
	}
	r.store.executions[execution.ID] = execution

	go r.publishEvent(domain.SwapEvent{
		EventType: domain.SwapExecutionCreated,
		Execution: execution,
	})

	return nil
}

func (r *swapRepository) GetSwapExecution(
	_ context.Context, id string,
) (*domain.SwapExecution, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	return r.getSwapExecution(id)
}

func (r *swapRepository) UpdateSwapExecution(
	_ context.Context, id string,
	updateFn func(s *domain.SwapExecution) (*domain.SwapExecution, error),
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	execution, err := r.getSwapExecution(id)
	if err != nil {
		return err
	}
	prevStatus := execution.Status

	updatedExecution, err := updateFn(execution)
	if err != nil {
		return err
	}

	r.store.executions[id] = updatedExecution

	if updatedExecution.Status != prevStatus {
		if eventType, ok := swapEventByStatus[updatedExecution.Status]; ok {
			go r.publishEvent(domain.SwapEvent{
				EventType: eventType,
				Execution: updatedExecution,
			})
		}
	}

	return nil
}

func (r *swapRepository) GetSwapExecutionsForWallet(
	_ context.Context, walletID string,
) ([]domain.SwapExecution, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	executions := make([]domain.SwapExecution, 0)
	for _, s := range r.store.executions {
		if s.WalletID == walletID {
			executions = append(executions, *s)
		}
	}
	return executions, nil
}

func (r *swapRepository) GetPendingSwapExecutions(
	_ context.Context,
) ([]domain.SwapExecution, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	executions := make([]domain.SwapExecution, 0)
	for _, s := range r.store.executions {
		if s.IsPending() {
			executions = append(executions, *s)
		}
	}
	return executions, nil
}

func (r *swapRepository) GetEventChannel() chan domain.SwapEvent {
	return r.externalChEvents
}

func (r *swapRepository) getSwapExecution(
	id string,
) (*domain.SwapExecution, error) {
	execution, ok := r.store.executions[id]
	if !ok {
		return nil, domain.ErrSwapNotFound
	}
	return execution, nil
}

func (r *swapRepository) publishEvent(event domain.SwapEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	r.chEvents <- event
	// send over the external channel without blocking in case nobody reads
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *swapRepository) close() {
	close(r.chEvents)
	close(r.externalChEvents)
}
