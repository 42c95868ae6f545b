package dbbadger

import (
	"context"
	"fmt"
	"sync"

	"github.com/harborwallet/harbor/internal/core/domain"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

type walletRepository struct {
	store            *badgerhold.Store
	chEvents         chan domain.WalletEvent
	externalChEvents chan domain.WalletEvent
	chLock           *sync.Mutex

	// inFlight tracks wallet ids with a pending write. A second writer for
	// the same wallet is rejected instead of queued, last-write-wins merges
	// over sealed secrets are never acceptable.
	inFlight     map[string]struct{}
	inFlightLock *sync.Mutex

	log func(format string, a ...interface{})
}

func NewWalletRepository(store *badgerhold.Store) domain.WalletRepository {
	return newWalletRepository(store)
}

func newWalletRepository(store *badgerhold.Store) *walletRepository {
	chEvents := make(chan domain.WalletEvent, 10)
	externalChEvents := make(chan domain.WalletEvent, 10)
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("wallet repository: %s", format)
		log.Debugf(format, a...)
	}
	return &walletRepository{
		store:            store,
		chEvents:         chEvents,
		externalChEvents: externalChEvents,
		chLock:           &sync.Mutex{},
		inFlight:         make(map[string]struct{}),
		inFlightLock:     &sync.Mutex{},
		log:              logFn,
	}
}

func (r *walletRepository) CreateWallet(
	ctx context.Context, wallet *domain.Wallet,
) error {
	if _, err := r.getWalletByUser(ctx, wallet.UserID); err == nil {
		return domain.ErrWalletAlreadyExisting
	}

	done, err := r.reserve(wallet.ID)
	if err != nil {
		return err
	}
	defer done()

	if err := r.store.Insert(wallet.ID, *wallet); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrWalletAlreadyExisting
		}
		return err
	}

	go r.publishEvent(domain.WalletEvent{
		EventType: domain.WalletCreated,
		WalletID:  wallet.ID,
		UserID:    wallet.UserID,
	})

	return nil
}

func (r *walletRepository) GetWallet(
	ctx context.Context, walletID string,
) (*domain.Wallet, error) {
	return r.getWallet(ctx, walletID)
}

func (r *walletRepository) GetWalletByUser(
	ctx context.Context, userID string,
) (*domain.Wallet, error) {
	return r.getWalletByUser(ctx, userID)
}

func (r *walletRepository) UpdateWallet(
	ctx context.Context, walletID string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	done, err := r.reserve(walletID)
	if err != nil {
		return err
	}
	defer done()

	wallet, err := r.getWallet(ctx, walletID)
	if err != nil {
		return err
	}

	updatedWallet, err := updateFn(wallet)
	if err != nil {
		return err
	}

	return r.store.Update(walletID, *updatedWallet)
}

func (r *walletRepository) DeactivateWallet(
	ctx context.Context, walletID string,
) error {
	var userID string
	if err := r.UpdateWallet(
		ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
			if !w.Active {
				return nil, domain.ErrWalletInactive
			}
			w.Deactivate()
			userID = w.UserID
			return w, nil
		},
	); err != nil {
		return err
	}

	go r.publishEvent(domain.WalletEvent{
		EventType: domain.WalletDeactivated,
		WalletID:  walletID,
		UserID:    userID,
	})

	return nil
}

func (r *walletRepository) GetEventChannel() chan domain.WalletEvent {
	return r.externalChEvents
}

func (r *walletRepository) getWallet(
	_ context.Context, walletID string,
) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := r.store.Get(walletID, &wallet); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) getWalletByUser(
	_ context.Context, userID string,
) (*domain.Wallet, error) {
	query := badgerhold.Where("UserID").Eq(userID).And("Active").Eq(true)
	var wallets []domain.Wallet
	if err := r.store.Find(&wallets, query); err != nil {
		return nil, err
	}
	if len(wallets) <= 0 {
		return nil, domain.ErrWalletNotFound
	}
	return &wallets[0], nil
}

// reserve marks a wallet write as in flight and returns the release func.
func (r *walletRepository) reserve(walletID string) (func(), error) {
	r.inFlightLock.Lock()
	defer r.inFlightLock.Unlock()

	if _, ok := r.inFlight[walletID]; ok {
		return nil, domain.ErrConcurrentModification
	}
	r.inFlight[walletID] = struct{}{}

	return func() {
		r.inFlightLock.Lock()
		defer r.inFlightLock.Unlock()
		delete(r.inFlight, walletID)
	}, nil
}

func (r *walletRepository) publishEvent(event domain.WalletEvent) {
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

func (r *walletRepository) close() {
	r.store.Close()
	close(r.chEvents)
	close(r.externalChEvents)
}
