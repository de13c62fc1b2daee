// Package config loads service configuration from a YAML file with
// environment overrides, via cleanenv. The file path comes from
// SETTLER_CONFIG_PATH.
package config

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/fx"
)

// Ledger backend selectors.
const (
	LedgerFile     = "file"
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerGCS      = "gcs"
	LedgerBigQuery = "bigquery"
)

// Directory backend selectors.
const (
	DirectoryStatic = "static"
	DirectoryRedis  = "redis"
)

type Config struct {
	Env        string `yaml:"env" env:"SETTLER_ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	LogConfig  `yaml:"log_config"`

	Rates  fx.RateSet `yaml:"rates"`
	FeeUSD float64    `yaml:"fee_usd" env:"SETTLER_FEE_USD" env-default:"5.0"`

	Ledger    LedgerConfig    `yaml:"ledger"`
	Directory DirectoryConfig `yaml:"directory"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

type HTTPServer struct {
	Host string `yaml:"host" env:"SETTLER_HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"SETTLER_HTTP_PORT" env-default:"8080"`
}

// Addr returns the host:port the HTTP server binds to.
func (s HTTPServer) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type LogConfig struct {
	LogLevel string `yaml:"log_level" env:"SETTLER_LOG_LEVEL" env-default:"info"`
}

type LedgerConfig struct {
	// Backend selects the sink: file, memory, postgres, gcs or bigquery.
	Backend string `yaml:"backend" env:"SETTLER_LEDGER_BACKEND" env-default:"file"`

	// Strict makes the file and GCS sinks refuse corrupt content instead
	// of silently resetting it.
	Strict bool `yaml:"strict" env:"SETTLER_LEDGER_STRICT"`

	File     FileLedger     `yaml:"file"`
	Postgres PostgresLedger `yaml:"postgres"`
	GCS      GCSLedger      `yaml:"gcs"`
	BigQuery BigQueryLedger `yaml:"bigquery"`
}

type FileLedger struct {
	Path string `yaml:"path" env:"SETTLER_LEDGER_PATH" env-default:"settled_transactions.json"`
}

type PostgresLedger struct {
	DSN string `yaml:"dsn" env:"SETTLER_LEDGER_DSN"`
}

type GCSLedger struct {
	Bucket string `yaml:"bucket"`
	Object string `yaml:"object" env-default:"settled_transactions.json"`
}

type BigQueryLedger struct {
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`
	TableID   string `yaml:"table_id" env-default:"settlement_records"`
}

type DirectoryConfig struct {
	// Backend selects the user directory: static or redis.
	Backend string `yaml:"backend" env:"SETTLER_DIRECTORY_BACKEND" env-default:"static"`

	// Users seeds the static directory. Empty means the built-in demo
	// users (directory.DefaultUsers).
	Users map[string]directory.Profile `yaml:"users"`

	Redis directory.RedisConfig `yaml:"redis"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"SETTLER_KAFKA_ENABLED"`
	Brokers []string `yaml:"brokers" env:"SETTLER_KAFKA_BROKERS"`

	// Topic carries outbound settlement events; RequestsTopic carries
	// inbound transactions for the worker. GroupID is the worker's
	// consumer group.
	Topic         string `yaml:"topic" env:"SETTLER_KAFKA_TOPIC" env-default:"settlements"`
	RequestsTopic string `yaml:"requests_topic" env:"SETTLER_KAFKA_REQUESTS_TOPIC" env-default:"settlement-requests"`
	GroupID       string `yaml:"group_id" env:"SETTLER_KAFKA_GROUP_ID" env-default:"settler-worker"`
}

// Load reads and validates configuration from the given path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: locating %s: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load over SETTLER_CONFIG_PATH, exiting on any failure. Meant
// for use from main before the logger exists.
func MustLoad() *Config {
	configPath := os.Getenv("SETTLER_CONFIG_PATH")
	if configPath == "" {
		log.Fatalf("SETTLER_CONFIG_PATH was not set\n")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v\n", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Rates.BTCUSD <= 0 || c.Rates.USDToEUR <= 0 || c.Rates.USDToGBP <= 0 {
		return fmt.Errorf("config: rates must all be positive, got %+v", c.Rates)
	}
	if c.FeeUSD < 0 {
		return fmt.Errorf("config: fee_usd must not be negative, got %v", c.FeeUSD)
	}

	switch c.Ledger.Backend {
	case LedgerFile:
		if c.Ledger.File.Path == "" {
			return fmt.Errorf("config: ledger.file.path is required for the file backend")
		}
	case LedgerMemory:
	case LedgerPostgres:
		if c.Ledger.Postgres.DSN == "" {
			return fmt.Errorf("config: ledger.postgres.dsn is required for the postgres backend")
		}
	case LedgerGCS:
		if c.Ledger.GCS.Bucket == "" {
			return fmt.Errorf("config: ledger.gcs.bucket is required for the gcs backend")
		}
	case LedgerBigQuery:
		if c.Ledger.BigQuery.ProjectID == "" || c.Ledger.BigQuery.DatasetID == "" {
			return fmt.Errorf("config: ledger.bigquery.project_id and dataset_id are required for the bigquery backend")
		}
	default:
		return fmt.Errorf("config: unknown ledger backend %q", c.Ledger.Backend)
	}

	switch c.Directory.Backend {
	case DirectoryStatic:
	case DirectoryRedis:
		if c.Directory.Redis.Addr == "" {
			return fmt.Errorf("config: directory.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown directory backend %q", c.Directory.Backend)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required when kafka is enabled")
	}
	return nil
}
