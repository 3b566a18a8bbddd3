// Package filex holds the small filesystem helpers the storage layout is
// built from.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents if they do not exist yet and returns
// the absolute path. It is idempotent.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// RegularFiles returns the regular files directly inside dir, sorted by
// name. A missing directory yields no entries and no error.
func RegularFiles(dir string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	infos := make([]fs.FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// DirUsage sums the sizes of the regular files directly inside dir.
// A missing directory has a usage of zero.
func DirUsage(dir string) (int64, error) {
	infos, err := RegularFiles(dir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, fi := range infos {
		total += fi.Size()
	}
	return total, nil
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}
