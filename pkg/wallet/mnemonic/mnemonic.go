package mnemonic

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidEntropySize = fmt.Errorf("entropy size must be 128 or 256")
	ErrInvalidMnemonic    = fmt.Errorf("invalid mnemonic")
)

type NewMnemonicArgs struct {
	EntropySize uint32
}

func (a NewMnemonicArgs) validate() error {
	if a.EntropySize > 0 {
		if a.EntropySize != 128 && a.EntropySize != 256 {
			return ErrInvalidEntropySize
		}
	}
	return nil
}

// NewMnemonic returns a new mnemonic as a list of words:
//   - EntropySize: 128 -> 12-words mnemonic.
//   - EntropySize: 256 -> 24-words mnemonic.
func NewMnemonic(args NewMnemonicArgs) ([]string, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	if args.EntropySize == 0 {
		args.EntropySize = 128
	}

	entropy, err := bip39.NewEntropy(int(args.EntropySize))
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Split(mnemonic, " "), nil
}

// Validate checks wordlist membership and checksum of the given mnemonic.
func Validate(mnemonic []string) error {
	if !bip39.IsMnemonicValid(strings.Join(mnemonic, " ")) {
		return ErrInvalidMnemonic
	}
	return nil
}

// ToSeed converts a validated mnemonic to its binary seed. The optional
// passphrase follows BIP39 (empty for the common case).
func ToSeed(mnemonic []string, passphrase string) ([]byte, error) {
	if err := Validate(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(strings.Join(mnemonic, " "), passphrase), nil
}

// ToSeedFromSentence is ToSeed for a space-separated sentence kept in a
// wipeable buffer. The sentence crosses into an immutable string only at the
// bip39 boundary, no intermediate word copies are made.
func ToSeedFromSentence(sentence []byte, passphrase string) ([]byte, error) {
	m := string(sentence)
	if !bip39.IsMnemonicValid(m) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(m, passphrase), nil
}
