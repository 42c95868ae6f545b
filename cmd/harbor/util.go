package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	appconfig "github.com/harborwallet/harbor/internal/app-config"
	"github.com/harborwallet/harbor/internal/config"
	"github.com/harborwallet/harbor/internal/core/domain"
)

// getAppConfig builds the application services against the local datadir, the
// same way the daemon does. The returned cleanup must be deferred to release
// the db and wipe the in-memory master key.
func getAppConfig() (*appconfig.AppConfig, func(), error) {
	datadir := config.GetDatadir()
	appCfg := &appconfig.AppConfig{
		Version:            version,
		Commit:             commit,
		Date:               date,
		RepoManagerType:    config.GetString(config.DatabaseTypeKey),
		RepoManagerConfig:  filepath.Join(datadir, config.DbLocation),
		MasterKey:          config.GetMasterKey(),
		MasterPassphrase:   config.GetString(config.MasterPassphraseKey),
		KeyStoreDir:        datadir,
		AggregatorUrl:      config.GetString(config.AggregatorUrlKey),
		AggregatorApiKey:   config.GetString(config.AggregatorApiKeyKey),
		QuoteTTL:           durationFromConfig(config.QuoteTTLKey),
		SubmissionTimeout:  durationFromConfig(config.SubmissionTimeoutKey),
		DestinationTimeout: durationFromConfig(config.DestinationTimeoutKey),
		PollInterval:       durationFromConfig(config.PollIntervalKey),
		RpcAddrByChain: map[domain.Chain]string{
			domain.ChainEthereum: config.GetString(config.EthereumRpcAddrKey),
			domain.ChainBSC:      config.GetString(config.BscRpcAddrKey),
			domain.ChainPolygon:  config.GetString(config.PolygonRpcAddrKey),
			domain.ChainSolana:   config.GetString(config.SolanaRpcAddrKey),
			domain.ChainTron:     config.GetString(config.TronRpcAddrKey),
		},
	}
	if err := appCfg.Validate(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		appCfg.RepoManager().Close()
		appCfg.KeyStore().Close()
	}
	return appCfg, cleanup, nil
}

func durationFromConfig(key string) time.Duration {
	return time.Duration(config.GetInt(key)) * time.Second
}

func jsonResponse(v interface{}) (string, error) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func printErr(err error) {
	fmt.Println(fmt.Errorf("error: %w", err))
}
