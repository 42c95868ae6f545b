package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	appconfig "github.com/harborwallet/harbor/internal/app-config"
	"github.com/harborwallet/harbor/internal/config"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/pkg/profiler"
	log "github.com/sirupsen/logrus"
)

var (
	// Build info.
	version string
	commit  string
	date    string

	// Config from env vars.
	dbType             = config.GetString(config.DatabaseTypeKey)
	logLevel           = config.GetInt(config.LogLevelKey)
	datadir            = config.GetDatadir()
	dbDir              = filepath.Join(datadir, config.DbLocation)
	profilerDir        = filepath.Join(datadir, config.ProfilerLocation)
	noProfiler         = config.GetBool(config.NoProfilerKey)
	profilerPort       = config.GetInt(config.ProfilerPortKey)
	statsInterval      = time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
	aggregatorUrl      = config.GetString(config.AggregatorUrlKey)
	aggregatorApiKey   = config.GetString(config.AggregatorApiKeyKey)
	quoteTTL           = time.Duration(config.GetInt(config.QuoteTTLKey)) * time.Second
	submissionTimeout  = time.Duration(config.GetInt(config.SubmissionTimeoutKey)) * time.Second
	destinationTimeout = time.Duration(config.GetInt(config.DestinationTimeoutKey)) * time.Second
	pollInterval       = time.Duration(config.GetInt(config.PollIntervalKey)) * time.Second
	masterKey          = config.GetMasterKey()
	masterPassphrase   = config.GetString(config.MasterPassphraseKey)
	rpcAddrByChain     = map[domain.Chain]string{
		domain.ChainEthereum: config.GetString(config.EthereumRpcAddrKey),
		domain.ChainBSC:      config.GetString(config.BscRpcAddrKey),
		domain.ChainPolygon:  config.GetString(config.PolygonRpcAddrKey),
		domain.ChainSolana:   config.GetString(config.SolanaRpcAddrKey),
		domain.ChainTron:     config.GetString(config.TronRpcAddrKey),
	}
)

func main() {
	log.SetLevel(log.Level(logLevel))

	if profilerEnabled := !noProfiler; profilerEnabled {
		profilerSvc, err := profiler.NewService(profiler.ServiceOpts{
			Port:          profilerPort,
			StatsInterval: statsInterval,
			Datadir:       profilerDir,
		})
		if err != nil {
			log.WithError(err).Fatal("profiler: error while starting")
		}

		profilerSvc.Start()
		defer func() {
			profilerSvc.Stop()
		}()
	}

	appCfg := &appconfig.AppConfig{
		Version:            version,
		Commit:             commit,
		Date:               date,
		RepoManagerType:    dbType,
		RepoManagerConfig:  dbDir,
		MasterKey:          masterKey,
		MasterPassphrase:   masterPassphrase,
		KeyStoreDir:        datadir,
		AggregatorUrl:      aggregatorUrl,
		AggregatorApiKey:   aggregatorApiKey,
		QuoteTTL:           quoteTTL,
		SubmissionTimeout:  submissionTimeout,
		DestinationTimeout: destinationTimeout,
		PollInterval:       pollInterval,
		RpcAddrByChain:     rpcAddrByChain,
	}
	if err := appCfg.Validate(); err != nil {
		log.WithError(err).Fatal("config: error while initializing")
	}

	buildVersion, buildCommit, buildDate := appCfg.BuildInfo()
	log.WithFields(log.Fields{
		"version": buildVersion,
		"commit":  buildCommit,
		"date":    buildDate,
	}).Info("harbord starting")

	swapSvc := appCfg.SwapService()
	registerMetricsHandlers(appCfg)

	defer func() {
		swapSvc.Stop()
		appCfg.RepoManager().Close()
		appCfg.KeyStore().Close()
	}()

	if err := swapSvc.ResumePendingSwaps(context.Background()); err != nil {
		log.WithError(err).Fatal("swap: error while resuming pending executions")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
}

func registerMetricsHandlers(appCfg *appconfig.AppConfig) {
	rm := appCfg.RepoManager()

	rm.RegisterHandlerForWalletEvent(
		domain.WalletCreated, func(_ domain.WalletEvent) {
			profiler.WalletsCreated.Inc()
		},
	)
	rm.RegisterHandlerForSwapEvent(
		domain.SwapExecutionQuoted, func(_ domain.SwapEvent) {
			profiler.SwapsQuoted.Inc()
		},
	)
	rm.RegisterHandlerForSwapEvent(
		domain.SwapExecutionSubmitted, func(_ domain.SwapEvent) {
			profiler.SwapsSubmitted.Inc()
		},
	)
	rm.RegisterHandlerForSwapEvent(
		domain.SwapExecutionSettled, func(_ domain.SwapEvent) {
			profiler.SwapsSettled.Inc()
		},
	)
	rm.RegisterHandlerForSwapEvent(
		domain.SwapExecutionExpired, func(_ domain.SwapEvent) {
			profiler.SwapsExpired.Inc()
		},
	)
	rm.RegisterHandlerForSwapEvent(
		domain.SwapExecutionFailed, func(event domain.SwapEvent) {
			reason := "unknown"
			if event.Execution != nil {
				reason = string(event.Execution.FailureReason)
			}
			profiler.SwapsFailed.WithLabelValues(reason).Inc()
		},
	)
}
