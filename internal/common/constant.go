package common

import "time"

// MiB is one mebibyte.
const MiB int64 = 1 << 20

// Storage limits applied when the configuration does not override them.
const (
	DefaultMaxFileSize    = 4 * MiB
	DefaultMaxUserStorage = 50 * MiB
	DefaultUploadWindow   = 40 * time.Second
)
