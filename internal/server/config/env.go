package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/ezfile/internal/flagx"
)

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (-env, or ./.env when present) into the
// process environment without overriding variables that are already set,
// then reads the EZFILE_* variables. TOKEN is accepted as a fallback for the
// bot token.
func parseEnv(config *Config, args []string) {
	path := flagx.EnvFilePath(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	if v := firstEnv("EZFILE_TOKEN", "TOKEN"); v != "" {
		config.BotToken = v
	}
	if v := os.Getenv("EZFILE_STORAGE_ROOT"); v != "" {
		config.StorageRoot = v
	}
	if v := os.Getenv("EZFILE_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("EZFILE_S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := os.Getenv("EZFILE_S3_USER"); v != "" {
		config.S3RootUser = v
	}
	if v := os.Getenv("EZFILE_S3_PASSWORD"); v != "" {
		config.S3RootPassword = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
