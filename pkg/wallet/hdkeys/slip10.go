package hdkeys

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	path "github.com/harborwallet/harbor/pkg/wallet/derivation-path"
)

var ErrUnhardenedEd25519 = fmt.Errorf(
	"ed25519 derivation supports hardened path elements only",
)

// DeriveEd25519 derives the ed25519 private key at the given path from the
// given BIP39 seed following SLIP-0010. Every path element must be hardened,
// ed25519 has no public parent derivation.
func DeriveEd25519(
	seed []byte, derivationPath path.DerivationPath,
) (ed25519.PrivateKey, error) {
	if len(seed) <= 0 {
		return nil, ErrMissingSeed
	}
	if len(derivationPath) <= 0 {
		return nil, ErrMissingPath
	}

	key, chainCode := masterKeyEd25519(seed)
	for _, step := range derivationPath {
		if step < hdkeychain.HardenedKeyStart {
			zero(key)
			zero(chainCode)
			return nil, ErrUnhardenedEd25519
		}
		key, chainCode = childKeyEd25519(key, chainCode, step)
	}
	defer zero(key)
	defer zero(chainCode)

	return ed25519.NewKeyFromSeed(key), nil
}

func masterKeyEd25519(seed []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func childKeyEd25519(key, chainCode []byte, index uint32) ([]byte, []byte) {
	data := make([]byte, 0, 1+len(key)+4)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	zero(key)
	zero(chainCode)
	return sum[:32], sum[32:]
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
