// Package config handles configuration for the bot process, including
// defaults, a JSON overlay, dotenv/environment values and command-line flags.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/dmitrijs2005/ezfile/internal/common"
)

// Config holds runtime settings for the ezfile bot.
//
// Fields:
//   - BotToken: Telegram bot API token. Usually supplied through .env.
//   - StorageRoot: directory that holds one sub-directory per user.
//   - MaxFileSize / MaxUserStorage: per-file and per-user ceilings, bytes.
//   - UploadWindow: how long an armed upload waits for a document.
//   - ProgressInterval: tick of the "Processing..." indicator.
//   - CacheSize: number of users whose listings are kept in memory.
//   - PollTimeout: long-polling timeout for updates.
//   - HealthAddrGRPC / MetricsAddr: listeners for health checks and metrics.
//     Empty disables the listener.
//   - S3*: optional off-site replica. Empty bucket disables it.
type Config struct {
	BotToken         string
	StorageRoot      string
	MaxFileSize      int64
	MaxUserStorage   int64
	UploadWindow     time.Duration
	ProgressInterval time.Duration
	CacheSize        int
	PollTimeout      time.Duration
	LogLevel         string
	HealthAddrGRPC   string
	MetricsAddr      string
	S3RootUser       string
	S3RootPassword   string
	S3Bucket         string
	S3Region         string
	S3BaseEndpoint   string
}

// ErrMissingToken is returned by Validate when no bot token was configured.
var ErrMissingToken = errors.New("bot token is not set (EZFILE_TOKEN)")

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.StorageRoot = "./files"
	c.MaxFileSize = common.DefaultMaxFileSize
	c.MaxUserStorage = common.DefaultMaxUserStorage
	c.UploadWindow = common.DefaultUploadWindow
	c.ProgressInterval = 1 * time.Second
	c.CacheSize = 1024
	c.PollTimeout = 60 * time.Second
	c.LogLevel = "info"
	c.HealthAddrGRPC = ":50051"
	c.MetricsAddr = ":9090"
	c.S3Region = "us-east-1"
}

// Validate checks the settings a running bot cannot do without.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}
	if c.StorageRoot == "" {
		return errors.New("storage root is not set")
	}
	if c.MaxFileSize <= 0 || c.MaxUserStorage <= 0 {
		return errors.New("size limits must be positive")
	}
	if c.MaxFileSize > c.MaxUserStorage {
		return errors.New("max file size exceeds user storage")
	}
	return nil
}

// ReplicaEnabled reports whether an S3 bucket was configured.
func (c *Config) ReplicaEnabled() bool {
	return c.S3Bucket != ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment (after loading a .env file)
// and finally command-line flags.
func LoadConfig() *Config {
	args := os.Args[1:]

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
