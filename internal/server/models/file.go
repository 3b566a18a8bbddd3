// Package models defines the data models shared by the storage core and the
// chat front-end.
package models

import (
	"fmt"
	"strconv"
)

// UserID is the opaque numeric identity the messaging platform assigns to a
// user. It keys storage directories, cache entries and gate slots.
type UserID int64

// String returns the decimal form used as the storage directory name.
func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// FileRecord describes one stored file. It is a snapshot taken when the
// file was written or scanned and is not kept in sync with the disk.
type FileRecord struct {
	// Name is unique within the owner's namespace.
	Name string
	// Size is the on-disk size in bytes at the time of the snapshot.
	Size int64
	// Path is the absolute location on persistent storage.
	Path string
}

// IncomingFile is a document announced by the transport before its bytes
// have been transferred.
type IncomingFile struct {
	// ID is the transport handle used to fetch the content.
	ID string
	// Name is the file name supplied by the sender; may be empty.
	Name string
	// Size is the size declared by the transport metadata.
	Size int64
	// MIME is the declared content type, informational only.
	MIME string
}

// FormatSize renders a byte count the way the listing shows it:
// plain bytes below 1 KiB, then KB and MB with two decimals.
func FormatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d bytes", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
	}
}
