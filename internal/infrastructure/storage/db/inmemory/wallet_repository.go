package inmemory

import (
	"context"
	"sync"

	"github.com/harborwallet/harbor/internal/core/domain"
)

type walletInmemoryStore struct {
	wallets map[string]*domain.Wallet
	lock    *sync.RWMutex
}

type walletRepository struct {
	store            *walletInmemoryStore
	chEvents         chan domain.WalletEvent
	externalChEvents chan domain.WalletEvent
	chLock           *sync.Mutex

	// inFlight tracks wallet ids with a pending write. A second writer for
	// the same wallet is rejected instead of queued, last-write-wins merges
	// over sealed secrets are never acceptable.
	inFlight     map[string]struct{}
	inFlightLock *sync.Mutex
}

// NewWalletRepository returns a volatile implementation of
// domain.WalletRepository backed by maps, intended for testing purposes.
func NewWalletRepository() domain.WalletRepository {
	return newWalletRepository()
}

func newWalletRepository() *walletRepository {
	return &walletRepository{
		store: &walletInmemoryStore{
			wallets: make(map[string]*domain.Wallet),
			lock:    &sync.RWMutex{},
		},
		chEvents:         make(chan domain.WalletEvent, 10),
		externalChEvents: make(chan domain.WalletEvent, 10),
		chLock:           &sync.Mutex{},
		inFlight:         make(map[string]struct{}),
		inFlightLock:     &sync.Mutex{},
	}
}

func (r *walletRepository) CreateWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	if _, ok := r.store.wallets[wallet.ID]; ok {
		return domain.ErrWalletAlreadyExisting
	}
	for _, w := range r.store.wallets {
		if w.UserID == wallet.UserID && w.Active {
			return domain.ErrWalletAlreadyExisting
		}
	}
	r.store.wallets[wallet.ID] = wallet

	go r.publishEvent(domain.WalletEvent{
		EventType: domain.WalletCreated,
		WalletID:  wallet.ID,
		UserID:    wallet.UserID,
	})

	return nil
}

func (r *walletRepository) GetWallet(
	_ context.Context, walletID string,
) (*domain.Wallet, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	return r.getWallet(walletID)
}

func (r *walletRepository) GetWalletByUser(
	_ context.Context, userID string,
) (*domain.Wallet, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	for _, w := range r.store.wallets {
		if w.UserID == userID && w.Active {
			return w, nil
		}
	}
	return nil, domain.ErrWalletNotFound
}

func (r *walletRepository) UpdateWallet(
	_ context.Context, walletID string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	if err := r.reserve(walletID); err != nil {
		return err
	}
	defer r.release(walletID)

	r.store.lock.RLock()
	wallet, err := r.getWallet(walletID)
	r.store.lock.RUnlock()
	if err != nil {
		return err
	}

	// updateFn runs outside the store lock, the in-flight reservation alone
	// protects the record from a second writer.
	updatedWallet, err := updateFn(wallet)
	if err != nil {
		return err
	}

	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.wallets[walletID] = updatedWallet
	return nil
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

func (r *walletRepository) getWallet(walletID string) (*domain.Wallet, error) {
	wallet, ok := r.store.wallets[walletID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}

func (r *walletRepository) reserve(walletID string) error {
	r.inFlightLock.Lock()
	defer r.inFlightLock.Unlock()

	if _, ok := r.inFlight[walletID]; ok {
		return domain.ErrConcurrentModification
	}
	r.inFlight[walletID] = struct{}{}
	return nil
}

func (r *walletRepository) release(walletID string) {
	r.inFlightLock.Lock()
	defer r.inFlightLock.Unlock()

	delete(r.inFlight, walletID)
}

func (r *walletRepository) publishEvent(event domain.WalletEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	r.chEvents <- event
	// send over the external channel without blocking in case nobody reads
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *walletRepository) close() {
	close(r.chEvents)
	close(r.externalChEvents)
}
