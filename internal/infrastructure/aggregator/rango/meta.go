package rango

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
)

// symbolAliases maps the chain names users commonly type to the ticker the
// aggregator actually lists.
var symbolAliases = map[string]string{
	"TRON":     "TRX",
	"SOLANA":   "SOL",
	"ETHEREUM": "ETH",
	"BITCOIN":  "BTC",
}

// nativeChainPriority resolves ambiguous tickers listed on several chains to
// their native one.
var nativeChainPriority = map[string]string{
	"TRX": "tron",
	"SOL": "solana",
	"ETH": "eth",
	"BTC": "btc",
	"BNB": "bsc",
}

// blockchainNames maps internal chain identifiers to the aggregator's
// blockchain naming.
var blockchainNames = map[domain.Chain]string{
	domain.ChainEthereum: "eth",
	domain.ChainBSC:      "bsc",
	domain.ChainPolygon:  "polygon",
	domain.ChainSolana:   "solana",
	domain.ChainTron:     "tron",
}

type tokenInfo struct {
	Blockchain string `json:"blockchain"`
	Symbol     string `json:"symbol"`
	Address    string `json:"address"`
	Decimals   int32  `json:"decimals"`
}

type metaResponse struct {
	Blockchains []struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"blockchains"`
	Tokens []tokenInfo `json:"tokens"`
}

// assetCache holds the aggregator's token listing, grouped by blockchain and
// symbol, refreshed lazily when stale.
type assetCache struct {
	tokensByChain map[string]map[string]tokenInfo
	fetchedAt     time.Time
	ttl           time.Duration
	lock          *sync.RWMutex
}

func newAssetCache(ttl time.Duration) *assetCache {
	return &assetCache{
		tokensByChain: make(map[string]map[string]tokenInfo),
		ttl:           ttl,
		lock:          &sync.RWMutex{},
	}
}

func (c *assetCache) isStale() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.tokensByChain) <= 0 || time.Since(c.fetchedAt) > c.ttl
}

func (c *assetCache) update(meta *metaResponse) {
	tokensByChain := make(map[string]map[string]tokenInfo)
	for _, token := range meta.Tokens {
		blockchain := strings.ToLower(token.Blockchain)
		if _, ok := tokensByChain[blockchain]; !ok {
			tokensByChain[blockchain] = make(map[string]tokenInfo)
		}
		tokensByChain[blockchain][strings.ToUpper(token.Symbol)] = token
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.tokensByChain = tokensByChain
	c.fetchedAt = time.Now()
}

// findToken resolves a user-typed symbol, optionally pinned to a blockchain,
// to the aggregator's token listing.
func (c *assetCache) findToken(symbol, blockchain string) (tokenInfo, bool) {
	symbol = strings.ToUpper(symbol)
	if alias, ok := symbolAliases[symbol]; ok {
		symbol = alias
	}

	c.lock.RLock()
	defer c.lock.RUnlock()

	if len(blockchain) > 0 {
		tokens, ok := c.tokensByChain[strings.ToLower(blockchain)]
		if !ok {
			return tokenInfo{}, false
		}
		token, ok := tokens[symbol]
		return token, ok
	}

	if preferred, ok := nativeChainPriority[symbol]; ok {
		if tokens, ok := c.tokensByChain[preferred]; ok {
			if token, ok := tokens[symbol]; ok {
				return token, true
			}
		}
	}

	for _, tokens := range c.tokensByChain {
		if token, ok := tokens[symbol]; ok {
			return token, true
		}
	}
	return tokenInfo{}, false
}

// identifier returns the token in the aggregator's BLOCKCHAIN.ADDRESS format,
// native assets are identified by their blockchain alone.
func (t tokenInfo) identifier() string {
	if len(t.Address) <= 0 {
		return t.Blockchain
	}
	return fmt.Sprintf("%s.%s", t.Blockchain, t.Address)
}

func (s *service) refreshAssets(ctx context.Context) error {
	if !s.assets.isStale() {
		return nil
	}

	var meta metaResponse
	if err := s.get(ctx, "/basic/meta", nil, &meta); err != nil {
		return fmt.Errorf("fetching asset listing: %w", err)
	}
	s.assets.update(&meta)
	s.log("refreshed asset listing: %d tokens", len(meta.Tokens))
	return nil
}
