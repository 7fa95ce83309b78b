package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	constants "procwatch/config"

	"github.com/spf13/viper"
)

// Config represents the application configuration. It is loaded once at
// startup and passed explicitly to every component constructor; there is
// no package-level mutable configuration state.
type Config struct {
	// Process discovery
	ProcessPattern string `mapstructure:"process_pattern"`
	ServiceName    string `mapstructure:"service_name"`
	Namespace      string `mapstructure:"service_namespace"`
	Description    string `mapstructure:"description"`
	Version        string `mapstructure:"version"`

	// Collection
	CollectionInterval int  `mapstructure:"collection_interval"` // seconds
	PerCoreCPU         bool `mapstructure:"per_core_cpu"`

	// Export
	OTLPEndpoint string            `mapstructure:"otlp_endpoint"`
	OTLPProtocol string            `mapstructure:"otlp_protocol"` // grpc or http
	OTLPInsecure bool              `mapstructure:"otlp_insecure"`
	OTLPHeaders  map[string]string `mapstructure:"otlp_headers"`

	// Metadata registry
	DatabasePath     string `mapstructure:"database_path"`
	SchemaVersion    string `mapstructure:"schema_version"`
	AllowSchemaReset bool   `mapstructure:"allow_schema_reset"`
	CoreNameStyle    string `mapstructure:"core_name_style"` // short or long
	ServiceMarker    string `mapstructure:"service_marker"`

	// Metric catalog
	CatalogPath string `mapstructure:"catalog_path"`

	// Logging
	LogFile string `mapstructure:"log_file"`
}

// Interval returns the collection interval as a duration
func (cfg *Config) Interval() time.Duration {
	return time.Duration(cfg.CollectionInterval) * time.Second
}

// Validate checks settings that have a closed set of accepted values
func (cfg *Config) Validate() error {
	if cfg.ProcessPattern == "" {
		return fmt.Errorf("process_pattern is required")
	}
	if cfg.OTLPProtocol != "grpc" && cfg.OTLPProtocol != "http" {
		return fmt.Errorf("otlp_protocol must be grpc or http, got %q", cfg.OTLPProtocol)
	}
	if cfg.CoreNameStyle != constants.CORE_STYLE_SHORT && cfg.CoreNameStyle != constants.CORE_STYLE_LONG {
		return fmt.Errorf("core_name_style must be %s or %s, got %q",
			constants.CORE_STYLE_SHORT, constants.CORE_STYLE_LONG, cfg.CoreNameStyle)
	}
	if cfg.CollectionInterval <= 0 {
		return fmt.Errorf("collection_interval must be positive, got %d", cfg.CollectionInterval)
	}
	return nil
}

// DefaultDatabasePath returns the per-user default registry location
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.DB_FILE_NAME)
	}
	return filepath.Join(home+constants.CONFIG_DIR_NAME, constants.DB_FILE_NAME)
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME" + constants.CONFIG_DIR_NAME)
	v.AddConfigPath(".")
	v.SetEnvPrefix("procwatch")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("service_namespace", constants.DEFAULT_SERVICE_NAMESPACE)
	v.SetDefault("collection_interval", constants.DEFAULT_COLLECTION_INTERVAL)
	v.SetDefault("per_core_cpu", true)
	v.SetDefault("otlp_endpoint", constants.DEFAULT_OTLP_ENDPOINT)
	v.SetDefault("otlp_protocol", constants.DEFAULT_OTLP_PROTOCOL)
	v.SetDefault("otlp_insecure", true)
	v.SetDefault("database_path", DefaultDatabasePath())
	v.SetDefault("schema_version", constants.METADATA_SCHEMA_VERSION)
	v.SetDefault("allow_schema_reset", false)
	v.SetDefault("core_name_style", constants.CORE_STYLE_SHORT)
	v.SetDefault("service_marker", constants.SERVICE_NAME_MARKER)
	v.SetDefault("log_file", constants.LOG_FILE)

	// Read config file; a missing file is fine, defaults apply
	v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// A missing service name falls back to the process pattern.
	if cfg.ServiceName == "" {
		cfg.ServiceName = cfg.ProcessPattern
	}

	return &cfg, nil
}
