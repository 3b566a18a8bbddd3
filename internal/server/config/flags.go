package config

import (
	"flag"

	"github.com/dmitrijs2005/ezfile/internal/flagx"
)

// parseFlags overlays Config fields from command-line flags.
//
//	-t string    bot token
//	-r string    storage root
//	-m int       max file size, bytes
//	-q int       per-user quota, bytes
//	-w duration  upload window (e.g. "40s")
//	-i duration  progress indicator interval
//	-k int       directory cache size, users
//	-o duration  long-poll timeout
//	-l string    log level (debug, info, warn, error)
//	-a string    gRPC health address, empty disables
//	-x string    metrics address, empty disables
//	-u, -p, -b, -g, -e  S3 user, password, bucket, region, endpoint
//
// Arguments are first narrowed with flagx.FilterArgs so flags owned by other
// parsers (-c, -config, -env) do not make this one fail.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{
		"-t", "-r", "-m", "-q", "-w", "-i", "-k", "-o", "-l", "-a", "-x",
		"-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.BotToken, "t", config.BotToken, "bot token")
	fs.StringVar(&config.StorageRoot, "r", config.StorageRoot, "storage root directory")
	fs.Int64Var(&config.MaxFileSize, "m", config.MaxFileSize, "max file size in bytes")
	fs.Int64Var(&config.MaxUserStorage, "q", config.MaxUserStorage, "per-user storage quota in bytes")
	fs.DurationVar(&config.UploadWindow, "w", config.UploadWindow, "upload window")
	fs.DurationVar(&config.ProgressInterval, "i", config.ProgressInterval, "progress indicator interval")
	fs.IntVar(&config.CacheSize, "k", config.CacheSize, "directory cache size (users)")
	fs.DurationVar(&config.PollTimeout, "o", config.PollTimeout, "long-poll timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.HealthAddrGRPC, "a", config.HealthAddrGRPC, "gRPC health address")
	fs.StringVar(&config.MetricsAddr, "x", config.MetricsAddr, "metrics address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
