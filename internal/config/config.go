package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the key to customize the harbor datadir.
	DatadirKey = "DATADIR"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// AggregatorUrlKey is the key to customize the base url of the swap
	// aggregator API.
	AggregatorUrlKey = "AGGREGATOR_URL"
	// AggregatorApiKeyKey is the key to set the swap aggregator API key.
	AggregatorApiKeyKey = "AGGREGATOR_API_KEY"
	// QuoteTTLKey is the key to customize the validity window of swap quotes.
	QuoteTTLKey = "QUOTE_TTL_IN_SECONDS"
	// SubmissionTimeoutKey is the key to customize the waiting time for the
	// source transaction of a swap to confirm before giving up.
	SubmissionTimeoutKey = "SUBMISSION_TIMEOUT_IN_SECONDS"
	// DestinationTimeoutKey is the key to customize the waiting time for the
	// destination transfer of a swap to be observed before giving up.
	DestinationTimeoutKey = "DESTINATION_TIMEOUT_IN_SECONDS"
	// PollIntervalKey is the key to customize the polling interval of the
	// background swap trackers.
	PollIntervalKey = "POLL_INTERVAL_IN_SECONDS"
	// MasterKeyKey is the key to set the 32-byte hex master key sealing every
	// wallet secret at rest. Mutually exclusive with MasterPassphraseKey.
	MasterKeyKey = "MASTER_KEY"
	// MasterPassphraseKey is the key to set the passphrase the master key is
	// derived from as an alternative to MasterKeyKey.
	MasterPassphraseKey = "MASTER_KEY_PASSPHRASE"
	// EthereumRpcAddrKey is the key to set the rpc address of the ethereum node.
	EthereumRpcAddrKey = "ETHEREUM_RPC_ADDR"
	// BscRpcAddrKey is the key to set the rpc address of the bsc node.
	BscRpcAddrKey = "BSC_RPC_ADDR"
	// PolygonRpcAddrKey is the key to set the rpc address of the polygon node.
	PolygonRpcAddrKey = "POLYGON_RPC_ADDR"
	// SolanaRpcAddrKey is the key to set the rpc address of the solana node.
	SolanaRpcAddrKey = "SOLANA_RPC_ADDR"
	// TronRpcAddrKey is the key to set the address of the tron full node.
	TronRpcAddrKey = "TRON_RPC_ADDR"
	// NoProfilerKey is the key to disable Prometheus profiling.
	NoProfilerKey = "NO_PROFILER"
	// ProfilerPortKey is the key to customize the port where the profiler will
	// be listening to.
	ProfilerPortKey = "PROFILER_PORT"
	// StatsIntervalKey is the key to customize the interval for the profiler to
	// gather profiling stats.
	StatsIntervalKey = "STATS_INTERVAL"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
	// ProfilerLocation is the folder inside the datadir containing profiler
	// stats files.
	ProfilerLocation = "stats"
)

var (
	vip *viper.Viper

	defaultDatadir            = btcutil.AppDataDir("harbord", false)
	defaultDbType             = "badger"
	defaultLogLevel           = 4
	defaultAggregatorUrl      = "https://api.rango.exchange"
	defaultQuoteTTL           = 60
	defaultSubmissionTimeout  = 900  // 15 minutes
	defaultDestinationTimeout = 1800 // 30 minutes
	defaultPollInterval       = 15
	defaultProfilerPort       = 18001
	defaultStatsInterval      = 600 // 10 minutes
	defaultEthereumRpcAddr    = "https://eth.llamarpc.com"
	defaultBscRpcAddr         = "https://binance.llamarpc.com"
	defaultPolygonRpcAddr     = "https://polygon.llamarpc.com"
	defaultSolanaRpcAddr      = "https://api.mainnet-beta.solana.com"
	defaultTronRpcAddr        = "https://api.trongrid.io"

	SupportedDbs = supportedType{
		"badger":   {},
		"inmemory": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("HARBOR")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(AggregatorUrlKey, defaultAggregatorUrl)
	vip.SetDefault(QuoteTTLKey, defaultQuoteTTL)
	vip.SetDefault(SubmissionTimeoutKey, defaultSubmissionTimeout)
	vip.SetDefault(DestinationTimeoutKey, defaultDestinationTimeout)
	vip.SetDefault(PollIntervalKey, defaultPollInterval)
	vip.SetDefault(NoProfilerKey, false)
	vip.SetDefault(ProfilerPortKey, defaultProfilerPort)
	vip.SetDefault(StatsIntervalKey, defaultStatsInterval)
	vip.SetDefault(EthereumRpcAddrKey, defaultEthereumRpcAddr)
	vip.SetDefault(BscRpcAddrKey, defaultBscRpcAddr)
	vip.SetDefault(PolygonRpcAddrKey, defaultPolygonRpcAddr)
	vip.SetDefault(SolanaRpcAddrKey, defaultSolanaRpcAddr)
	vip.SetDefault(TronRpcAddrKey, defaultTronRpcAddr)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf(
			"unsupported database type, must be one of %s", SupportedDbs,
		)
	}

	if masterKey := GetString(MasterKeyKey); len(masterKey) > 0 {
		if len(GetString(MasterPassphraseKey)) > 0 {
			return fmt.Errorf(
				"master key and master key passphrase are mutually exclusive",
			)
		}
		buf, err := hex.DecodeString(masterKey)
		if err != nil {
			return fmt.Errorf("invalid master key format, must be hex")
		}
		if len(buf) != 32 {
			return fmt.Errorf(
				"invalid master key length, must be exactly 32 bytes in hex " +
					"string format",
			)
		}
	}

	if ttl := GetInt(QuoteTTLKey); ttl <= 0 {
		return fmt.Errorf("quote ttl must be a positive amount of seconds")
	}
	if timeout := GetInt(SubmissionTimeoutKey); timeout <= 0 {
		return fmt.Errorf(
			"submission timeout must be a positive amount of seconds",
		)
	}
	if timeout := GetInt(DestinationTimeoutKey); timeout <= 0 {
		return fmt.Errorf(
			"destination timeout must be a positive amount of seconds",
		)
	}
	if interval := GetInt(PollIntervalKey); interval <= 0 {
		return fmt.Errorf("poll interval must be a positive amount of seconds")
	}

	return nil
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetMasterKey returns the decoded master key if one is set.
func GetMasterKey() []byte {
	masterKey := GetString(MasterKeyKey)
	if len(masterKey) <= 0 {
		return nil
	}
	// format already validated at init
	buf, _ := hex.DecodeString(masterKey)
	return buf
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(
		filepath.Join(datadir, DbLocation),
	); err != nil {
		return err
	}

	noProfiler := GetBool(NoProfilerKey)
	if noProfiler {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
