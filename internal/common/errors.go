// Package common defines shared constants and sentinel errors used across
// the bot front-end and the storage core. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Upload validation errors.
	ErrMissingName   = errors.New("file has no name")
	ErrSizeExceeded  = errors.New("file size limit exceeded")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrTransfer      = errors.New("file transfer failed")

	// Session errors.
	ErrNotInitialized   = errors.New("session not started")
	ErrPermissionDenied = errors.New("upload not permitted")
)
