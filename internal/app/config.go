package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bedrock/internal/model"
	"bedrock/internal/objstore"
	"bedrock/internal/saver"
	"bedrock/internal/warehouse"
)

// Config holds application configuration from env
type Config struct {
	DataProvider   string // alpaca | polygon
	AlpacaAPIKey   string
	AlpacaSecret   string
	AlpacaDataURL  string
	AlpacaFeed     string
	PolygonAPIKeys []string
	PolygonBaseURL string
	// PolygonMinInterval spaces requests on one key (12s on the free tier).
	PolygonMinInterval time.Duration

	StorageBackend   string // azure | local
	Azure            objstore.AzureCredentials
	RawContainer     string
	RefinedContainer string
	RefinedPrefix    string
	RawFormat        string // csv | parquet | json

	ClickHouse warehouse.ClickHouseConfig

	Tickers     []string
	TickersFile string

	IngestWorkers     int
	HeartbeatInterval time.Duration
	FetchTimeout      time.Duration
	StoreTimeout      time.Duration
	LoadTimeout       time.Duration
	RetryMax          uint64
	RetryInitial      time.Duration
	RetryMaxInterval  time.Duration

	SyncBatchSize int
	RunLockPath   string
	RunLockTTL    time.Duration

	IngestCron string
	SyncCron   string

	DataDir  string
	LogLevel string // debug | info | warn | error
}

// LoadConfig reads config from environment. When envFile exists it is loaded first;
// variables already set in the environment win over the file.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, &model.ConfigError{Err: fmt.Errorf("loading %s: %w", envFile, err)}
			}
		}
	}

	var errs error
	cfg := &Config{
		DataProvider:   strings.ToLower(getEnv("DATA_PROVIDER", "alpaca")),
		AlpacaAPIKey:   os.Getenv("ALPACA_API_KEY"),
		AlpacaSecret:   os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaDataURL:  os.Getenv("ALPACA_DATA_URL"),
		AlpacaFeed:     os.Getenv("ALPACA_FEED"),
		PolygonAPIKeys: parsePolygonAPIKeys(),
		PolygonBaseURL: os.Getenv("POLYGON_BASE_URL"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "azure")),
		Azure: objstore.AzureCredentials{
			ConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
			AccountName:      os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:       os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
			ServiceURL:       os.Getenv("AZURE_STORAGE_SERVICE_URL"),
		},
		RawContainer:     getEnv("RAW_CONTAINER", "raw-data"),
		RefinedContainer: getEnv("REFINED_CONTAINER", "refined-data"),
		RefinedPrefix:    getEnv("REFINED_PREFIX", "daily_bars"),
		RawFormat:        strings.ToLower(getEnv("RAW_FORMAT", "csv")),

		ClickHouse: warehouse.ClickHouseConfig{
			Host:     os.Getenv("CLICKHOUSE_HOST"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
			Database: getEnv("CLICKHOUSE_DATABASE", "default"),
			Table:    getEnv("CLICKHOUSE_TABLE", "daily_bars"),
		},

		TickersFile: os.Getenv("TICKERS_FILE"),
		IngestCron:  getEnv("INGEST_CRON", "30 0 * * *"),
		SyncCron:    getEnv("SYNC_CRON", "0 2 * * *"),
		DataDir:     getEnv("DATA_DIR", "data"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
	if s := os.Getenv("TICKERS"); s != "" {
		cfg.Tickers = splitList(s)
	}

	cfg.PolygonMinInterval = getDuration("POLYGON_MIN_INTERVAL", 0, &errs)
	cfg.ClickHouse.Port = getInt("CLICKHOUSE_PORT", 9000, &errs)
	cfg.ClickHouse.Secure = getBool("CLICKHOUSE_SECURE", false, &errs)
	cfg.ClickHouse.DialTimeout = getDuration("CLICKHOUSE_DIAL_TIMEOUT", 10*time.Second, &errs)
	cfg.IngestWorkers = getInt("INGEST_WORKERS", 1, &errs)
	cfg.HeartbeatInterval = getDuration("HEARTBEAT_INTERVAL", 30*time.Second, &errs)
	cfg.FetchTimeout = getDuration("FETCH_TIMEOUT", 30*time.Second, &errs)
	cfg.StoreTimeout = getDuration("STORE_TIMEOUT", 60*time.Second, &errs)
	cfg.LoadTimeout = getDuration("LOAD_TIMEOUT", 30*time.Minute, &errs)
	if n := getInt("RETRY_MAX", 3, &errs); n >= 0 {
		cfg.RetryMax = uint64(n)
	} else {
		errs = errors.Join(errs, fmt.Errorf("RETRY_MAX: must not be negative"))
	}
	cfg.RetryInitial = getDuration("RETRY_INITIAL_INTERVAL", time.Second, &errs)
	cfg.RetryMaxInterval = getDuration("RETRY_MAX_INTERVAL", 30*time.Second, &errs)
	cfg.SyncBatchSize = getInt("SYNC_BATCH_SIZE", 10000, &errs)
	cfg.RunLockPath = getEnv("RUN_LOCK_PATH", filepath.Join(cfg.DataDir, "state", "runlock.db"))
	cfg.RunLockTTL = getDuration("RUN_LOCK_TTL", 2*time.Hour, &errs)

	if errs != nil {
		return nil, &model.ConfigError{Err: errs}
	}
	return cfg, nil
}

// ValidateIngest checks everything the ingest job needs before any component is built.
func (c *Config) ValidateIngest() error {
	var errs error
	switch c.DataProvider {
	case "alpaca":
		if c.AlpacaAPIKey == "" || c.AlpacaSecret == "" {
			errs = errors.Join(errs, fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set"))
		}
	case "polygon":
		if len(c.PolygonAPIKeys) == 0 {
			errs = errors.Join(errs, fmt.Errorf("POLYGON_API_KEY or POLYGON_API_KEYS must be set"))
		}
	default:
		errs = errors.Join(errs, fmt.Errorf("unsupported DATA_PROVIDER %q (use: alpaca, polygon)", c.DataProvider))
	}
	if saver.NewEncoder(c.RawFormat) == nil {
		errs = errors.Join(errs, fmt.Errorf("unsupported RAW_FORMAT %q (use: csv, parquet, json)", c.RawFormat))
	}
	if c.IngestWorkers < 1 {
		errs = errors.Join(errs, fmt.Errorf("INGEST_WORKERS must be at least 1"))
	}
	errs = errors.Join(errs, c.validateStorage(c.RawContainer))
	if errs != nil {
		return &model.ConfigError{Err: errs}
	}
	return nil
}

// ValidateSync checks everything the sync job needs. It makes no network call.
func (c *Config) ValidateSync() error {
	var errs error
	errs = errors.Join(errs, c.validateStorage(c.RefinedContainer))
	if err := c.ClickHouse.Validate(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("CLICKHOUSE_*: %w", err))
	}
	if c.SyncBatchSize < 1 {
		errs = errors.Join(errs, fmt.Errorf("SYNC_BATCH_SIZE must be at least 1"))
	}
	if c.RunLockPath == "" {
		errs = errors.Join(errs, fmt.Errorf("RUN_LOCK_PATH must be set"))
	}
	if errs != nil {
		return &model.ConfigError{Err: errs}
	}
	return nil
}

func (c *Config) validateStorage(container string) error {
	var errs error
	switch c.StorageBackend {
	case "azure":
		if c.Azure.Strategy() == objstore.StrategyNone {
			errs = errors.Join(errs, fmt.Errorf("AZURE_STORAGE_CONNECTION_STRING or AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY must be set"))
		}
	case "local":
		if c.DataDir == "" {
			errs = errors.Join(errs, fmt.Errorf("DATA_DIR must be set for local storage"))
		}
	default:
		errs = errors.Join(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q (use: azure, local)", c.StorageBackend))
	}
	if container == "" {
		errs = errors.Join(errs, fmt.Errorf("container name must be set"))
	}
	return errs
}

// ReportDir returns data/reports
func (c *Config) ReportDir() string {
	return filepath.Join(c.DataDir, "reports")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *error) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*errs = errors.Join(*errs, fmt.Errorf("%s: %q is not an integer", key, s))
		return def
	}
	return v
}

func getBool(key string, def bool, errs *error) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		*errs = errors.Join(*errs, fmt.Errorf("%s: %q is not a boolean", key, s))
		return def
	}
	return v
}

func getDuration(key string, def time.Duration, errs *error) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || v < 0 {
		*errs = errors.Join(*errs, fmt.Errorf("%s: %q is not a duration", key, s))
		return def
	}
	return v
}

func parsePolygonAPIKeys() []string {
	s := os.Getenv("POLYGON_API_KEYS")
	if s == "" {
		s = os.Getenv("POLYGON_API_KEY")
	}
	if s == "" {
		return nil
	}
	return splitList(s)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
