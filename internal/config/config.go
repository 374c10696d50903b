// Package config loads service settings from defaults, an optional YAML file
// and BALANCE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. BALANCE_BIGQUERY_PROJECT_ID.
const EnvPrefix = "BALANCE"

// EnvConfigFile names the variable holding the YAML file path.
const EnvConfigFile = "BALANCE_CONFIG"

// DefaultConfigFile is read when EnvConfigFile is unset. It may be absent.
const DefaultConfigFile = "balance.yaml"

// Store backends.
const (
	StoreBigQuery = "bigquery"
	StoreMemory   = "memory"
)

// ErrMissingCredentials is returned when the selected store cannot be
// reached because its connection settings are absent.
var ErrMissingCredentials = errors.New("config: missing store credentials")

// Config represents the complete service configuration.
type Config struct {
	Store    string         `yaml:"store" envconfig:"STORE"`
	BigQuery BigQueryConfig `yaml:"bigquery" envconfig:"BIGQUERY"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Import   ImportConfig   `yaml:"import" envconfig:"IMPORT"`
}

// BigQueryConfig locates the records table.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id" envconfig:"PROJECT_ID"`
	DatasetID string `yaml:"dataset_id" envconfig:"DATASET_ID"`
	Table     string `yaml:"table" envconfig:"TABLE"`
}

// StorageConfig controls archiving of raw uploads.
type StorageConfig struct {
	// Bucket receives a copy of every uploaded file. Empty disables archiving.
	Bucket string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix string `yaml:"prefix" envconfig:"PREFIX"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	QueueSize        int           `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
}

// ImportConfig controls how uploads are read.
type ImportConfig struct {
	// Layout is the default file layout: "upload" or "static".
	Layout string `yaml:"layout" envconfig:"LAYOUT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreBigQuery,
		BigQuery: BigQueryConfig{
			DatasetID: "balance",
			Table:     "account_records",
		},
		Storage: StorageConfig{
			Prefix: "uploads",
		},
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 5 * time.Minute,
			MaxUploadBytes:   10 << 20,
			QueueSize:        100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Import: ImportConfig{
			Layout: "upload",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if it
// exists, then environment variables. An empty path means the file named by
// BALANCE_CONFIG, or DefaultConfigFile.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		path = DefaultConfigFile
	}

	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("loading config from env: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// Save writes cfg to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreBigQuery:
		if c.BigQuery.ProjectID == "" || c.BigQuery.DatasetID == "" {
			return fmt.Errorf("%w: set %s_BIGQUERY_PROJECT_ID and %s_BIGQUERY_DATASET_ID",
				ErrMissingCredentials, EnvPrefix, EnvPrefix)
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Server.OperationTimeout <= 0 {
		return fmt.Errorf("config: operation timeout must be positive")
	}
	return nil
}
