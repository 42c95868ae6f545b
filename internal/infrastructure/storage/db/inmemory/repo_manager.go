package inmemory

import (
	"sync"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
)

// RepoManager holds the volatile domain repositories implementations in a
// single data structure.
type repoManager struct {
	walletRepository *walletRepository
	swapRepository   *swapRepository

	walletEventHandlers *handlerMap
	swapEventHandlers   *handlerMap
}

// NewRepoManager is the factory for creating a new in-memory implementation
// of the ports.RepoManager interface.
func NewRepoManager() ports.RepoManager {
	walletRepo := newWalletRepository()
	swapRepo := newSwapRepository()

	rm := &repoManager{
		walletRepository:    walletRepo,
		swapRepository:      swapRepo,
		walletEventHandlers: newHandlerMap(),
		swapEventHandlers:   newHandlerMap(),
	}

	go rm.listenToWalletEvents()
	go rm.listenToSwapEvents()

	return rm
}

func (d *repoManager) WalletRepository() domain.WalletRepository {
	return d.walletRepository
}

func (d *repoManager) SwapRepository() domain.SwapRepository {
	return d.swapRepository
}

func (rm *repoManager) RegisterHandlerForWalletEvent(
	eventType domain.WalletEventType, handler ports.WalletEventHandler,
) {
	rm.walletEventHandlers.set(int(eventType), handler)
}

func (rm *repoManager) RegisterHandlerForSwapEvent(
	eventType domain.SwapEventType, handler ports.SwapEventHandler,
) {
	rm.swapEventHandlers.set(int(eventType), handler)
}

func (d *repoManager) Close() {
	d.walletRepository.close()
	d.swapRepository.close()
}

func (rm *repoManager) listenToWalletEvents() {
	for event := range rm.walletRepository.chEvents {
		if handlers, ok := rm.walletEventHandlers.get(int(event.EventType)); ok {
			for i := range handlers {
				handler := handlers[i]
				go handler.(ports.WalletEventHandler)(event)
			}
		}
	}
}

func (rm *repoManager) listenToSwapEvents() {
	for event := range rm.swapRepository.chEvents {
		if handlers, ok := rm.swapEventHandlers.get(int(event.EventType)); ok {
			for i := range handlers {
				handler := handlers[i]
				go handler.(ports.SwapEventHandler)(event)
			}
		}
	}
}

// handlerMap is a util type to prevent race conditions when registering
// or retrieving handlers for events.
type handlerMap struct {
	handlersByEventType map[int][]interface{}
	lock                *sync.RWMutex
}

func newHandlerMap() *handlerMap {
	return &handlerMap{
		handlersByEventType: make(map[int][]interface{}),
		lock:                &sync.RWMutex{},
	}
}

func (m *handlerMap) set(key int, val interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handlersByEventType[key] = append(m.handlersByEventType[key], val)
}

func (m *handlerMap) get(key int) ([]interface{}, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	val, ok := m.handlersByEventType[key]
	return val, ok
}
