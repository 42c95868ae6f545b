package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWalletMissingUser     = fmt.Errorf("missing user id")
	ErrWalletMissingSeed     = fmt.Errorf("missing sealed mnemonic")
	ErrWalletMissingAccounts = fmt.Errorf("missing accounts")
	ErrWalletAlreadyExisting = fmt.Errorf("user already owns a wallet")
	ErrWalletNotFound        = fmt.Errorf("wallet not found")
	ErrWalletInactive        = fmt.Errorf("wallet is deactivated")
	ErrAccountNotFound       = fmt.Errorf("account not found in wallet")
)

// EncryptedSecret is the sealed form of a seed or private key: ciphertext
// plus whatever is needed to decrypt it again, except the master key itself,
// which lives only in the key store's process memory. Compromise of the
// storage medium alone must not reveal the plaintext.
type EncryptedSecret struct {
	Ciphertext []byte
	Nonce      []byte
	// Salt is set only when the master key is derived from a passphrase, it
	// holds the KDF salt. Empty for a directly configured master key.
	Salt []byte
}

// Account holds the per-chain derivation info of a wallet. It references its
// private key material through the pair (wallet sealed seed, derivation
// path), a plaintext key is never stored.
type Account struct {
	Chain          Chain
	DerivationPath string
	Address        string
	Index          uint32
}

// Wallet is a custodial multi-chain wallet owned by exactly one user. All
// per-chain accounts derive deterministically from the single sealed
// mnemonic, so the wallet is fully reconstructible from it alone.
type Wallet struct {
	ID                string
	UserID            string
	EncryptedMnemonic EncryptedSecret
	Accounts          map[Chain]*Account
	CreatedAt         time.Time
	Active            bool
}

// NewWallet returns a new active Wallet for the given user with the given
// sealed mnemonic and derived accounts.
func NewWallet(
	userID string, encryptedMnemonic EncryptedSecret, accounts []Account,
) (*Wallet, error) {
	if len(userID) <= 0 {
		return nil, ErrWalletMissingUser
	}
	if len(encryptedMnemonic.Ciphertext) <= 0 {
		return nil, ErrWalletMissingSeed
	}
	if len(accounts) <= 0 {
		return nil, ErrWalletMissingAccounts
	}

	accountsByChain := make(map[Chain]*Account)
	for i := range accounts {
		account := accounts[i]
		if !account.Chain.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidChain, account.Chain)
		}
		accountsByChain[account.Chain] = &account
	}

	return &Wallet{
		ID:                uuid.NewString(),
		UserID:            userID,
		EncryptedMnemonic: encryptedMnemonic,
		Accounts:          accountsByChain,
		CreatedAt:         time.Now(),
		Active:            true,
	}, nil
}

// Account safely returns the wallet account for the given chain.
func (w *Wallet) Account(chain Chain) (*Account, error) {
	if !w.Active {
		return nil, ErrWalletInactive
	}
	account, ok := w.Accounts[chain]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// AddressByChain returns the displayable addresses of all accounts.
func (w *Wallet) AddressByChain() map[Chain]string {
	addresses := make(map[Chain]string, len(w.Accounts))
	for chain, account := range w.Accounts {
		addresses[chain] = account.Address
	}
	return addresses
}

// Deactivate soft-deletes the wallet. The record and its sealed seed are
// retained, the wallet only stops being usable for swaps and balances.
func (w *Wallet) Deactivate() {
	w.Active = false
}
