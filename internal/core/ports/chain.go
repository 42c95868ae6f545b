package ports

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Transaction statuses observed on chain.
const (
	TxPending TxStatus = iota
	TxConfirmed
	TxRejected
)

type TxStatus int

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// SigningKey carries the just-in-time decrypted key material for one signing
// operation. Exactly one of the two keys is set depending on the chain's
// curve. Callers must call Zero as soon as signing completes.
type SigningKey struct {
	Secp256k1 *btcec.PrivateKey
	Ed25519   ed25519.PrivateKey
}

// Zero wipes the key material.
func (k *SigningKey) Zero() {
	if k.Secp256k1 != nil {
		k.Secp256k1.Zero()
		k.Secp256k1 = nil
	}
	for i := range k.Ed25519 {
		k.Ed25519[i] = 0
	}
	k.Ed25519 = nil
}

// SignedTx is a broadcastable signed transaction along with its chain
// transaction id. The id is computed at signing time, before any broadcast,
// so that callers can persist it ahead of submission.
type SignedTx struct {
	TxID    string
	Payload []byte
}

// ChainService is the capability set every supported chain implements:
// derive, address format, sign, submit, status, balance. The orchestrator
// only ever talks to this interface.
type ChainService interface {
	// Chain returns the chain this service operates on.
	Chain() domain.Chain
	// DeriveAccount deterministically derives the account at the given index
	// from the given seed.
	DeriveAccount(seed []byte, index uint32) (*domain.Account, error)
	// SigningKeyFromSeed derives the signing key matching DeriveAccount.
	SigningKeyFromSeed(seed []byte, index uint32) (*SigningKey, error)
	// ValidateAddress enforces the chain-specific address format rules.
	ValidateAddress(address string) bool
	// SignTransaction signs the given unsigned transaction, returning the
	// broadcastable payload and its transaction id. Chain parameters missing
	// from the payload, like the account nonce, are fetched from the network.
	// Fails with domain.ErrSigning on malformed input, never retried.
	SignTransaction(
		ctx context.Context, key *SigningKey, tx *UnsignedTx,
	) (*SignedTx, error)
	// BroadcastTransaction submits a signed transaction to the chain and
	// returns its transaction id.
	BroadcastTransaction(ctx context.Context, signedTx []byte) (string, error)
	// GetTxStatus returns the confirmation status of a transaction.
	GetTxStatus(ctx context.Context, txid string) (TxStatus, error)
	// GetBalance returns the native balance of the given address in whole
	// coin units.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// ChainRegistry is the closed set of chain services keyed by chain.
type ChainRegistry interface {
	// Service returns the service for the given chain.
	Service(chain domain.Chain) (ChainService, error)
	// Services returns all registered services.
	Services() []ChainService
}

// ErrChainNotSupported is returned by registries for chains without a
// registered service.
var ErrChainNotSupported = fmt.Errorf("chain not supported")
