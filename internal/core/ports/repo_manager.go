package ports

import (
	"github.com/harborwallet/harbor/internal/core/domain"
)

type WalletEventHandler func(event domain.WalletEvent)
type SwapEventHandler func(event domain.SwapEvent)

// RepoManager is the abstraction for any kind of service intended to manage
// domain repositories implementations of the same concrete type.
type RepoManager interface {
	// WalletRepository returns the wallet repository.
	WalletRepository() domain.WalletRepository
	// SwapRepository returns the swap execution repository.
	SwapRepository() domain.SwapRepository

	// RegisterHandlerForWalletEvent registers an handler function, executed
	// whenever the given event type occurs.
	RegisterHandlerForWalletEvent(
		eventType domain.WalletEventType, handler WalletEventHandler,
	)
	// RegisterHandlerForSwapEvent registers an handler function, executed
	// whenever the given event type occurs.
	RegisterHandlerForSwapEvent(
		eventType domain.SwapEventType, handler SwapEventHandler,
	)

	// Close closes the connection with all concrete repositories
	// implementations.
	Close()
}
