package appconfig

import (
	"fmt"
	"time"

	"github.com/harborwallet/harbor/internal/config"
	"github.com/harborwallet/harbor/internal/core/application"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	"github.com/harborwallet/harbor/internal/infrastructure/aggregator/rango"
	"github.com/harborwallet/harbor/internal/infrastructure/chain"
	"github.com/harborwallet/harbor/internal/infrastructure/chain/evm"
	"github.com/harborwallet/harbor/internal/infrastructure/chain/solana"
	"github.com/harborwallet/harbor/internal/infrastructure/chain/tron"
	aes_keystore "github.com/harborwallet/harbor/internal/infrastructure/keystore/aes"
	dbbadger "github.com/harborwallet/harbor/internal/infrastructure/storage/db/badger"
	"github.com/harborwallet/harbor/internal/infrastructure/storage/db/inmemory"
	log "github.com/sirupsen/logrus"
)

// AppConfig is the struct holding all configuration options for every
// application service (wallet and swap). This data structure acts also as a
// factory of the mentioned application services and the portable services
// used by them.
// Public config args:
//   - RepoManagerType - (required) One of the supported repository manager types.
//   - RepoManagerConfig - (optional) Custom config args for the repository manager based on its type.
//   - MasterKey | MasterPassphrase - (required, mutually exclusive) The key material sealing wallet secrets at rest.
//   - KeyStoreDir - (required with MasterPassphrase) The dir persisting the KDF salt across restarts.
//   - AggregatorUrl/AggregatorApiKey - The swap aggregator endpoint.
//   - QuoteTTL - (required) The validity window of swap quotes.
//   - SubmissionTimeout - (required) The waiting time for the source transaction of a swap to confirm before giving up.
//   - DestinationTimeout - (required) The waiting time for the destination transfer of a swap before giving up.
//   - PollInterval - (required) The polling interval of the background swap trackers.
//   - RpcAddrByChain - (required) One node rpc address per supported chain.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	RepoManagerType   string
	RepoManagerConfig interface{}

	MasterKey        []byte
	MasterPassphrase string
	KeyStoreDir      string

	AggregatorUrl    string
	AggregatorApiKey string
	QuoteTTL         time.Duration

	SubmissionTimeout  time.Duration
	DestinationTimeout time.Duration
	PollInterval       time.Duration

	RpcAddrByChain map[domain.Chain]string

	rm         ports.RepoManager
	keyStore   ports.KeyStore
	aggregator ports.Aggregator
	registry   ports.ChainRegistry
	walletSvc  *application.WalletService
	swapSvc    *application.SwapService
}

func (c *AppConfig) Validate() error {
	if len(c.RepoManagerType) == 0 {
		return fmt.Errorf("missing repo manager type")
	}
	if _, ok := config.SupportedDbs[c.RepoManagerType]; !ok {
		return fmt.Errorf(
			"repo manager type not supported, must be one of: %s",
			config.SupportedDbs,
		)
	}
	if len(c.MasterKey) == 0 && len(c.MasterPassphrase) == 0 {
		return fmt.Errorf("missing master key or master key passphrase")
	}
	if len(c.MasterKey) > 0 && len(c.MasterPassphrase) > 0 {
		return fmt.Errorf(
			"master key and master key passphrase are mutually exclusive",
		)
	}
	if len(c.MasterPassphrase) > 0 && len(c.KeyStoreDir) == 0 {
		return fmt.Errorf("missing keystore dir for master key passphrase")
	}
	if c.QuoteTTL == 0 {
		return fmt.Errorf("missing quote ttl")
	}
	if c.SubmissionTimeout == 0 {
		return fmt.Errorf("missing submission timeout")
	}
	if c.DestinationTimeout == 0 {
		return fmt.Errorf("missing destination timeout")
	}
	if c.PollInterval == 0 {
		return fmt.Errorf("missing poll interval")
	}
	for _, chainName := range domain.SupportedChains() {
		if len(c.RpcAddrByChain[chainName]) == 0 {
			return fmt.Errorf("missing rpc address for chain %s", chainName)
		}
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.keyStoreService(); err != nil {
		return err
	}
	if _, err := c.aggregatorService(); err != nil {
		return err
	}
	if _, err := c.chainRegistry(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) RepoManager() ports.RepoManager {
	return c.rm
}

func (c *AppConfig) KeyStore() ports.KeyStore {
	return c.keyStore
}

func (c *AppConfig) WalletService() *application.WalletService {
	return c.walletService()
}

func (c *AppConfig) SwapService() *application.SwapService {
	return c.swapService()
}

func (c *AppConfig) repoManager() (ports.RepoManager, error) {
	if c.rm != nil {
		return c.rm, nil
	}

	switch c.RepoManagerType {
	case "inmemory":
		c.rm = inmemory.NewRepoManager()
		return c.rm, nil
	case "badger":
		if c.RepoManagerConfig == nil {
			return nil, fmt.Errorf("missing repo manager config args")
		}
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := dbbadger.NewRepoManager(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	default:
		return nil, fmt.Errorf("unknown repo manager type")
	}
}

func (c *AppConfig) keyStoreService() (ports.KeyStore, error) {
	if c.keyStore != nil {
		return c.keyStore, nil
	}

	var keyStore ports.KeyStore
	var err error
	if len(c.MasterKey) > 0 {
		keyStore, err = aes_keystore.NewKeyStore(c.MasterKey)
	} else {
		keyStore, err = aes_keystore.NewKeyStoreFromPassphrase(
			c.MasterPassphrase, c.KeyStoreDir,
		)
	}
	if err != nil {
		return nil, err
	}
	c.keyStore = keyStore
	return c.keyStore, nil
}

func (c *AppConfig) aggregatorService() (ports.Aggregator, error) {
	if c.aggregator != nil {
		return c.aggregator, nil
	}

	aggregator, err := rango.NewService(rango.ServiceArgs{
		BaseURL:  c.AggregatorUrl,
		APIKey:   c.AggregatorApiKey,
		QuoteTTL: c.QuoteTTL,
	})
	if err != nil {
		return nil, err
	}
	c.aggregator = aggregator
	return c.aggregator, nil
}

func (c *AppConfig) chainRegistry() (ports.ChainRegistry, error) {
	if c.registry != nil {
		return c.registry, nil
	}

	services := make([]ports.ChainService, 0, len(domain.SupportedChains()))
	for _, chainName := range domain.SupportedChains() {
		var svc ports.ChainService
		var err error
		switch chainName {
		case domain.ChainSolana:
			svc, err = solana.NewService(c.RpcAddrByChain[chainName])
		case domain.ChainTron:
			svc, err = tron.NewService(c.RpcAddrByChain[chainName])
		default:
			svc, err = evm.NewService(chainName, c.RpcAddrByChain[chainName])
		}
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", chainName, err)
		}
		services = append(services, svc)
	}

	registry, err := chain.NewRegistry(services...)
	if err != nil {
		return nil, err
	}
	c.registry = registry
	return c.registry, nil
}

func (c *AppConfig) walletService() *application.WalletService {
	if c.walletSvc != nil {
		return c.walletSvc
	}

	rm, _ := c.repoManager()
	keyStore, _ := c.keyStoreService()
	registry, _ := c.chainRegistry()
	c.walletSvc = application.NewWalletService(rm, keyStore, registry)
	return c.walletSvc
}

func (c *AppConfig) swapService() *application.SwapService {
	if c.swapSvc != nil {
		return c.swapSvc
	}

	rm, _ := c.repoManager()
	keyStore, _ := c.keyStoreService()
	aggregator, _ := c.aggregatorService()
	registry, _ := c.chainRegistry()
	c.swapSvc = application.NewSwapService(
		rm, keyStore, aggregator, registry,
		c.SubmissionTimeout, c.DestinationTimeout, c.PollInterval,
	)
	return c.swapSvc
}

// BuildInfo returns the version info stamped at build time.
func (c *AppConfig) BuildInfo() (version, commit, date string) {
	version, commit, date = "dev", "none", "unknown"
	if c.Version != "" {
		version = c.Version
	}
	if c.Commit != "" {
		commit = c.Commit
	}
	if c.Date != "" {
		date = c.Date
	}
	return
}
