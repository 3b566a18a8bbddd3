package bot

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Callback data sent with inline buttons.
const (
	dataUpload   = "upload"
	dataList     = "list_files"
	dataBack     = "back"
	prefixFile   = "file_"
	prefixGet    = "download_"
	prefixRemove = "remove_"

	// maxCallbackData is the platform limit for button payloads, in bytes.
	maxCallbackData = 64
	aliasMarker     = "~"
	aliasTableSize  = 4096
)

// aliases maps short tokens to file names that do not fit in a button
// payload. Entries are evicted in LRU order; a button whose alias was
// evicted is treated as a stale menu.
type aliases struct {
	names *lru.Cache[string, string]
}

func newAliases(size int) (*aliases, error) {
	if size <= 0 {
		size = aliasTableSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("alias table init: %w", err)
	}
	return &aliases{names: c}, nil
}

// data builds the payload for prefix+name, replacing the name with an alias
// when it is too long or could be mistaken for one.
func (a *aliases) data(prefix, name string) string {
	if len(prefix)+len(name) <= maxCallbackData && !strings.HasPrefix(name, aliasMarker) {
		return prefix + name
	}
	token := aliasMarker + uuid.NewString()
	a.names.Add(token, name)
	return prefix + token
}

// resolve turns a payload suffix back into a file name.
func (a *aliases) resolve(s string) (string, bool) {
	if !strings.HasPrefix(s, aliasMarker) {
		return s, s != ""
	}
	return a.names.Get(s)
}
