// Package storage maps user identities to isolated directories under a
// storage root and answers size questions from the disk.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/ezfile/internal/common"
	"github.com/dmitrijs2005/ezfile/internal/filex"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

const stagingDirName = ".staging"

// Layout is the on-disk arrangement: <root>/<user id>/<file name>, flat,
// plus <root>/.staging for transfers that have not been accepted yet.
type Layout struct {
	root    string
	staging string
}

// NewLayout creates the storage root and the staging area if missing.
func NewLayout(root string) (*Layout, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}

	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	staging, err := filex.EnsureDir(filepath.Join(abs, stagingDirName))
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	return &Layout{root: abs, staging: staging}, nil
}

// Root returns the absolute storage root.
func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) userDir(userID models.UserID) string {
	return filepath.Join(l.root, userID.String())
}

// DirectoryFor returns the user's directory, creating it on first use.
func (l *Layout) DirectoryFor(userID models.UserID) (string, error) {
	return filex.EnsureDir(l.userDir(userID))
}

// PathFor resolves a file name inside the user's directory without creating
// anything. Names that are not a single path element are reported as
// common.ErrorNotFound since no such file can exist in a flat directory.
func (l *Layout) PathFor(userID models.UserID, name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: invalid name %q", common.ErrorNotFound, name)
	}
	return filepath.Join(l.userDir(userID), name), nil
}

// Usage sums the on-disk size of every file in the user's directory. It always
// re-reads the filesystem; a user without a directory uses zero bytes.
func (l *Layout) Usage(userID models.UserID) (int64, error) {
	return filex.DirUsage(l.userDir(userID))
}

// Scan lists the user's directory as records ordered by name.
func (l *Layout) Scan(userID models.UserID) ([]models.FileRecord, error) {
	dir := l.userDir(userID)

	infos, err := filex.RegularFiles(dir)
	if err != nil {
		return nil, err
	}

	records := make([]models.FileRecord, 0, len(infos))
	for _, fi := range infos {
		records = append(records, models.FileRecord{
			Name: fi.Name(),
			Size: fi.Size(),
			Path: filepath.Join(dir, fi.Name()),
		})
	}
	return records, nil
}

// Stage opens a fresh temp file in the staging area for an incoming transfer.
// The caller owns the file and must close and either commit or remove it.
func (l *Layout) Stage() (*os.File, error) {
	f, err := os.CreateTemp(l.staging, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return f, nil
}

// SanitizeName reduces a sender-supplied name to a single path element.
// An empty result means the file has no usable name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if !ValidName(name) {
		return ""
	}
	return name
}

// ValidName reports whether name can be stored as-is in a user directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
