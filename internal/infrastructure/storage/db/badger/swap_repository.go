package dbbadger

import (
	"context"
	"fmt"
	"sync"

	"github.com/harborwallet/harbor/internal/core/domain"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
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

type swapRepository struct {
	store            *badgerhold.Store
	chEvents         chan domain.SwapEvent
	externalChEvents chan domain.SwapEvent
	chLock           *sync.Mutex

	log func(format string, a ...interface{})
}

func NewSwapRepository(store *badgerhold.Store) domain.SwapRepository {
	return newSwapRepository(store)
}

func newSwapRepository(store *badgerhold.Store) *swapRepository {
	chEvents := make(chan domain.SwapEvent, 20)
	externalChEvents := make(chan domain.SwapEvent, 20)
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("swap repository: %s", format)
		log.Debugf(format, a...)
	}
	return &swapRepository{
		store:            store,
		chEvents:         chEvents,
		externalChEvents: externalChEvents,
		chLock:           &sync.Mutex{},
		log:              logFn,
	}
}

func (r *swapRepository) AddSwapExecution(
	ctx context.Context, execution *domain.SwapExecution,
) error {
	if err := r.store.Insert(execution.ID, *execution); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("swap execution %s already existing", execution.ID)
		}
		return err
	}

	go r.publishEvent(domain.SwapEvent{
		EventType: domain.SwapExecutionCreated,
		Execution: execution,
	})

	return nil
}

func (r *swapRepository) GetSwapExecution(
	ctx context.Context, id string,
) (*domain.SwapExecution, error) {
	return r.getSwapExecution(ctx, id)
}

func (r *swapRepository) UpdateSwapExecution(
	ctx context.Context, id string,
	updateFn func(s *domain.SwapExecution) (*domain.SwapExecution, error),
) error {
	execution, err := r.getSwapExecution(ctx, id)
	if err != nil {
		return err
	}
	prevStatus := execution.Status

	updatedExecution, err := updateFn(execution)
	if err != nil {
		return err
	}

	if err := r.store.Update(id, *updatedExecution); err != nil {
		return err
	}

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
	ctx context.Context, walletID string,
) ([]domain.SwapExecution, error) {
	query := badgerhold.Where("WalletID").Eq(walletID)
	var executions []domain.SwapExecution
	if err := r.store.Find(&executions, query); err != nil {
		return nil, err
	}
	return executions, nil
}

func (r *swapRepository) GetPendingSwapExecutions(
	ctx context.Context,
) ([]domain.SwapExecution, error) {
	query := badgerhold.Where("Status").In(
		domain.SwapQuoting, domain.SwapQuoted, domain.SwapAwaitingSignature,
		domain.SwapSubmittedSource, domain.SwapAwaitingDestination,
	)
	var executions []domain.SwapExecution
	if err := r.store.Find(&executions, query); err != nil {
		return nil, err
	}
	return executions, nil
}

func (r *swapRepository) GetEventChannel() chan domain.SwapEvent {
	return r.externalChEvents
}

func (r *swapRepository) getSwapExecution(
	_ context.Context, id string,
) (*domain.SwapExecution, error) {
	var execution domain.SwapExecution
	if err := r.store.Get(id, &execution); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSwapNotFound
		}
		return nil, err
	}
	return &execution, nil
}

func (r *swapRepository) publishEvent(event domain.SwapEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	r.log("publish event %s", event.EventType)
	r.chEvents <- event
	// send over the external channel without blocking in case nobody reads
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *swapRepository) close() {
	r.store.Close()
	close(r.chEvents)
	close(r.externalChEvents)
}
