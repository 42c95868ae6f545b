package domain

import "context"

const (
	WalletCreated WalletEventType = iota
	WalletDeactivated
)

var walletTypeString = map[WalletEventType]string{
	WalletCreated:     "WalletCreated",
	WalletDeactivated: "WalletDeactivated",
}

type WalletEventType int

func (t WalletEventType) String() string {
	return walletTypeString[t]
}

// WalletEvent holds info about an event occured within the repository.
type WalletEvent struct {
	EventType WalletEventType
	WalletID  string
	UserID    string
}

// WalletRepository is the abstraction for any kind of database intended to
// persist Wallets. Implementations must serialize conflicting writes to the
// same wallet: a write finding another in-flight write for the same wallet
// is rejected with ErrConcurrentModification, never silently merged.
type WalletRepository interface {
	// CreateWallet stores a new Wallet, preventing more than one wallet per
	// user. Generates a WalletCreated event if successful.
	CreateWallet(ctx context.Context, wallet *Wallet) error
	// GetWallet returns the Wallet with the given id, if existing.
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	// GetWalletByUser returns the active Wallet owned by the given user.
	GetWalletByUser(ctx context.Context, userID string) (*Wallet, error)
	// UpdateWallet allows to make multiple changes to the Wallet in a
	// transactional way.
	UpdateWallet(
		ctx context.Context, walletID string,
		updateFn func(w *Wallet) (*Wallet, error),
	) error
	// DeactivateWallet soft-deletes the Wallet with the given id. Generates
	// a WalletDeactivated event if successful.
	DeactivateWallet(ctx context.Context, walletID string) error
	// GetEventChannel returns the channel of WalletEvents.
	GetEventChannel() chan WalletEvent
}
