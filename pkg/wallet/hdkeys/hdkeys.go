package hdkeys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	path "github.com/harborwallet/harbor/pkg/wallet/derivation-path"
)

var (
	ErrMissingSeed = fmt.Errorf("missing seed")
	ErrMissingPath = fmt.Errorf("missing derivation path")
)

// DeriveSecp256k1 derives the secp256k1 private key at the given BIP32 path
// from the given BIP39 seed. The derivation is deterministic: identical
// inputs always yield the identical key.
func DeriveSecp256k1(
	seed []byte, derivationPath path.DerivationPath,
) (*btcec.PrivateKey, error) {
	if len(seed) <= 0 {
		return nil, ErrMissingSeed
	}
	if len(derivationPath) <= 0 {
		return nil, ErrMissingPath
	}

	// Version bytes are irrelevant here, the extended key never leaves this
	// function in serialized form.
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	key := master
	for _, step := range derivationPath {
		child, err := key.Derive(step)
		if key != master {
			key.Zero()
		}
		if err != nil {
			return nil, err
		}
		key = child
	}
	defer key.Zero()

	return key.ECPrivKey()
}
