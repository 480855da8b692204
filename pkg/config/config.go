// Package config provides a reusable loader for diskuto server configuration
// files and environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"diskuto/pkg/utils"
)

// Config is the unified configuration for a diskuto server process. It
// mirrors the structure of the optional diskuto.yaml file that Load looks
// for.
type Config struct {
	Server struct {
		Binds           []string `mapstructure:"binds" json:"binds"`
		Open            bool     `mapstructure:"open" json:"open"`
		MaxItemSize     int      `mapstructure:"max_item_size" json:"max_item_size"`
		AllowedDrift    int64    `mapstructure:"allowed_drift_ms" json:"allowed_drift_ms"`
		EnforceDrift    bool     `mapstructure:"enforce_drift" json:"enforce_drift"`
		MetricsPath     string   `mapstructure:"metrics_path" json:"metrics_path"`
		AttachmentChunk int      `mapstructure:"attachment_chunk_bytes" json:"attachment_chunk_bytes"`
	} `mapstructure:"server" json:"server"`

	Storage struct {
		SQLiteFile    string `mapstructure:"sqlite_file" json:"sqlite_file"`
		MaxOpenConns  int    `mapstructure:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns  int    `mapstructure:"max_idle_conns" json:"max_idle_conns"`
		TempBlobTTLMs int64  `mapstructure:"temp_blob_ttl_ms" json:"temp_blob_ttl_ms"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Defaults applies the zero-config defaults, matching spec.md's defaults:
// a connection pool of up to 10 with min idle 0 and a 32KiB item-size
// ceiling.
func Defaults() Config {
	var c Config
	c.Server.Binds = []string{"127.0.0.1:8080"}
	c.Server.MaxItemSize = 32 * 1024
	c.Server.MetricsPath = "/metrics"
	c.Server.AttachmentChunk = 32 * 1024
	c.Storage.SQLiteFile = "diskuto.sqlite3"
	c.Storage.MaxOpenConns = 10
	c.Storage.MaxIdleConns = 0
	c.Storage.TempBlobTTLMs = 24 * 60 * 60 * 1000
	c.Logging.Level = "info"
	return c
}

// Load reads configuration files and merges any environment specific
// overrides on top of Defaults(). If env is empty, only the default
// configuration file (if any) is loaded. Missing config files are not an
// error: the zero-config defaults above are always a valid configuration.
func Load(env string) (*Config, error) {
	AppConfig = Defaults()

	viper.SetConfigName("diskuto")
	viper.AddConfigPath("cmd/feedctl/config")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("DISKUTO")
	viper.AutomaticEnv()

	setDefaultsFrom(AppConfig)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName("diskuto." + env)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
			}
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the DISKUTO_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("DISKUTO_ENV", ""))
}

func setDefaultsFrom(c Config) {
	viper.SetDefault("server.binds", c.Server.Binds)
	viper.SetDefault("server.open", c.Server.Open)
	viper.SetDefault("server.max_item_size", c.Server.MaxItemSize)
	viper.SetDefault("server.allowed_drift_ms", c.Server.AllowedDrift)
	viper.SetDefault("server.enforce_drift", c.Server.EnforceDrift)
	viper.SetDefault("server.metrics_path", c.Server.MetricsPath)
	viper.SetDefault("server.attachment_chunk_bytes", c.Server.AttachmentChunk)
	viper.SetDefault("storage.sqlite_file", c.Storage.SQLiteFile)
	viper.SetDefault("storage.max_open_conns", c.Storage.MaxOpenConns)
	viper.SetDefault("storage.max_idle_conns", c.Storage.MaxIdleConns)
	viper.SetDefault("storage.temp_blob_ttl_ms", c.Storage.TempBlobTTLMs)
	viper.SetDefault("logging.level", c.Logging.Level)
	viper.SetDefault("logging.file", c.Logging.File)
}
