package ports

import "github.com/harborwallet/harbor/internal/core/domain"

// KeyStore is the abstraction for the component exclusively owning secret
// material. Plaintext returned by Unseal must be treated as scoped: callers
// zero it as soon as the signing operation it was acquired for completes,
// on every exit path.
type KeyStore interface {
	// Seal encrypts the given plaintext with authenticated encryption under
	// the process-held master key.
	Seal(plaintext []byte) (*domain.EncryptedSecret, error)
	// Unseal decrypts the given secret. Fails with domain.ErrIntegrity if
	// the ciphertext was tampered with and with domain.ErrKeyUnavailable if
	// the master key is not loaded.
	Unseal(secret *domain.EncryptedSecret) ([]byte, error)
	// Close zeroes the in-memory master key. Any later Seal/Unseal fails
	// with domain.ErrKeyUnavailable.
	Close()
}
