package domain

import "fmt"

// Chain identifies one of the supported blockchains. The set is closed:
// adding a chain means adding a constant here plus one plugin implementing
// ports.ChainService, the orchestrator is never touched.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainPolygon  Chain = "polygon"
	ChainSolana   Chain = "solana"
	ChainTron     Chain = "tron"
)

// BIP44 coin types.
const (
	CoinTypeEVM    uint32 = 60
	CoinTypeSolana uint32 = 501
	CoinTypeTron   uint32 = 195
)

var supportedChains = map[Chain]struct{}{
	ChainEthereum: {},
	ChainBSC:      {},
	ChainPolygon:  {},
	ChainSolana:   {},
	ChainTron:     {},
}

func (c Chain) String() string {
	return string(c)
}

func (c Chain) IsValid() bool {
	_, ok := supportedChains[c]
	return ok
}

// IsEVM returns whether the chain shares the Ethereum account model. EVM
// chains derive the very same key pair and address from a given seed.
func (c Chain) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainBSC, ChainPolygon:
		return true
	default:
		return false
	}
}

// CoinType returns the BIP44 coin type for the chain.
func (c Chain) CoinType() uint32 {
	switch c {
	case ChainSolana:
		return CoinTypeSolana
	case ChainTron:
		return CoinTypeTron
	default:
		return CoinTypeEVM
	}
}

// DerivationPath returns the chain's conventional derivation path for the
// given account index.
func (c Chain) DerivationPath(index uint32) string {
	if c == ChainSolana {
		// ed25519 derivation is hardened-only.
		return fmt.Sprintf("m/44'/%d'/%d'/0'", c.CoinType(), index)
	}
	return fmt.Sprintf("m/44'/%d'/0'/0/%d", c.CoinType(), index)
}

// SupportedChains returns the closed set of supported chains in a stable
// order.
func SupportedChains() []Chain {
	return []Chain{ChainEthereum, ChainBSC, ChainPolygon, ChainSolana, ChainTron}
}

// ParseChain parses a chain name, case-sensitive, into a Chain.
func ParseChain(name string) (Chain, error) {
	c := Chain(name)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: unknown chain %s", ErrInvalidChain, name)
	}
	return c, nil
}
