package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/ezfile/internal/flagx"
	"github.com/dmitrijs2005/ezfile/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Durations use
// timex.Duration so both "40s" and integer nanoseconds are accepted.
type JsonConfig struct {
	BotToken         string         `json:"bot_token"`
	StorageRoot      string         `json:"storage_root"`
	MaxFileSize      int64          `json:"max_file_size"`
	MaxUserStorage   int64          `json:"max_user_storage"`
	UploadWindow     timex.Duration `json:"upload_window"`
	ProgressInterval timex.Duration `json:"progress_interval"`
	CacheSize        int            `json:"cache_size"`
	PollTimeout      timex.Duration `json:"poll_timeout"`
	LogLevel         string         `json:"log_level"`
	HealthAddrGRPC   string         `json:"health_addr_grpc"`
	MetricsAddr      string         `json:"metrics_addr"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the file named by -c/-config. Keys absent
// from the file keep their current value. An unreadable or malformed file
// panics, as there is no sensible way to continue.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	setString(&config.BotToken, c.BotToken)
	setString(&config.StorageRoot, c.StorageRoot)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.HealthAddrGRPC, c.HealthAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.MaxFileSize > 0 {
		config.MaxFileSize = c.MaxFileSize
	}
	if c.MaxUserStorage > 0 {
		config.MaxUserStorage = c.MaxUserStorage
	}
	if c.CacheSize > 0 {
		config.CacheSize = c.CacheSize
	}
	if c.UploadWindow.Duration > 0 {
		config.UploadWindow = c.UploadWindow.Duration
	}
	if c.ProgressInterval.Duration > 0 {
		config.ProgressInterval = c.ProgressInterval.Duration
	}
	if c.PollTimeout.Duration > 0 {
		config.PollTimeout = c.PollTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
