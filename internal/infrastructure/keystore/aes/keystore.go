package aes_keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	"golang.org/x/crypto/scrypt"
)

const (
	masterKeyLen = 32
	nonceLen     = 12
	saltLen      = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	saltFilename = "keystore.salt"
)

var (
	ErrInvalidMasterKeyLen = fmt.Errorf(
		"master key must be exactly %d bytes", masterKeyLen,
	)
	ErrMissingSecret = fmt.Errorf("missing secret")
)

// keyStore seals and unseals secrets with AES-256-GCM under a master key
// held only in process memory for the store's lifetime. The key is loaded
// once at startup and wiped on Close, it is never persisted alongside the
// ciphertext it protects.
type keyStore struct {
	masterKey []byte
	salt      []byte
	lock      *sync.RWMutex
}

// NewKeyStore returns a ports.KeyStore using the given 32-byte master key.
func NewKeyStore(masterKey []byte) (ports.KeyStore, error) {
	if len(masterKey) != masterKeyLen {
		return nil, ErrInvalidMasterKeyLen
	}

	key := make([]byte, masterKeyLen)
	copy(key, masterKey)
	return &keyStore{masterKey: key, lock: &sync.RWMutex{}}, nil
}

// NewKeyStoreFromPassphrase derives the master key from a passphrase with
// scrypt, using the KDF salt persisted in the given datadir. The salt is
// generated and written on first use, every later construction re-derives
// the very same key: secrets sealed before a restart stay unsealable after
// it. The salt is also recorded on every sealed secret as recovery info.
func NewKeyStoreFromPassphrase(
	passphrase, datadir string,
) (ports.KeyStore, error) {
	if len(passphrase) <= 0 {
		return nil, domain.ErrKeyUnavailable
	}

	salt, err := loadOrCreateSalt(filepath.Join(datadir, saltFilename))
	if err != nil {
		return nil, err
	}
	return keyStoreFromPassphrase(passphrase, salt)
}

// NewKeyStoreFromPassphraseWithSalt re-derives the master key of an existing
// deployment from its passphrase and the salt recorded on its secrets.
func NewKeyStoreFromPassphraseWithSalt(
	passphrase string, salt []byte,
) (ports.KeyStore, error) {
	if len(passphrase) <= 0 {
		return nil, domain.ErrKeyUnavailable
	}
	if len(salt) != saltLen {
		return nil, fmt.Errorf("salt must be exactly %d bytes", saltLen)
	}
	return keyStoreFromPassphrase(passphrase, salt)
}

func loadOrCreateSalt(saltFile string) ([]byte, error) {
	salt, err := os.ReadFile(saltFile)
	if err == nil {
		if len(salt) != saltLen {
			return nil, fmt.Errorf(
				"malformed salt file %s: must be exactly %d bytes",
				saltFile, saltLen,
			)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt = make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(saltFile, salt, 0600); err != nil {
		return nil, fmt.Errorf("persisting salt file: %w", err)
	}
	return salt, nil
}

func keyStoreFromPassphrase(passphrase string, salt []byte) (*keyStore, error) {
	key, err := scrypt.Key(
		[]byte(passphrase), salt, scryptN, scryptR, scryptP, masterKeyLen,
	)
	if err != nil {
		return nil, err
	}
	return &keyStore{masterKey: key, salt: salt, lock: &sync.RWMutex{}}, nil
}

func (s *keyStore) Seal(plaintext []byte) (*domain.EncryptedSecret, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	aead, err := s.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return &domain.EncryptedSecret{
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
		Salt:       s.salt,
	}, nil
}

func (s *keyStore) Unseal(secret *domain.EncryptedSecret) ([]byte, error) {
	if secret == nil || len(secret.Ciphertext) <= 0 {
		return nil, ErrMissingSecret
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	aead, err := s.aead()
	if err != nil {
		return nil, err
	}
	if len(secret.Nonce) != aead.NonceSize() {
		return nil, domain.ErrIntegrity
	}

	plaintext, err := aead.Open(nil, secret.Nonce, secret.Ciphertext, nil)
	if err != nil {
		// never wrap the cipher error, it must not carry any hint about
		// the key or plaintext
		return nil, domain.ErrIntegrity
	}
	return plaintext, nil
}

func (s *keyStore) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.masterKey {
		s.masterKey[i] = 0
	}
	s.masterKey = nil
}

func (s *keyStore) aead() (cipher.AEAD, error) {
	if len(s.masterKey) <= 0 {
		return nil, domain.ErrKeyUnavailable
	}
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Zero wipes a plaintext buffer returned by Unseal. Callers do this on every
// exit path once the secret has served its purpose.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
