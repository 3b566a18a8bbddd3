// Package cache memoizes per-user directory listings so that showing the
// file menu does not rescan the disk every time.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

const defaultSize = 1024

// ScanFunc performs a full, authoritative listing of a user's directory.
type ScanFunc func(userID models.UserID) ([]models.FileRecord, error)

// Observer is notified about hits and misses. Optional.
type Observer interface {
	CacheHit()
	CacheMiss()
}

// DirCache holds the last known listing per user. It is a memo, not a source
// of truth: a missing entry is rebuilt with a full scan, single additions are
// appended, and removals patch the entry so it never reports a ghost file.
type DirCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[models.UserID, []models.FileRecord]
	scan     ScanFunc
	group    singleflight.Group
	observer Observer
}

// New creates a cache bounded to size users. size <= 0 uses the default.
func New(size int, scan ScanFunc) (*DirCache, error) {
	if scan == nil {
		return nil, fmt.Errorf("dir cache requires a scan func")
	}
	if size <= 0 {
		size = defaultSize
	}
	entries, err := lru.New[models.UserID, []models.FileRecord](size)
	if err != nil {
		return nil, fmt.Errorf("dir cache init: %w", err)
	}
	return &DirCache{entries: entries, scan: scan}, nil
}

// SetObserver attaches a hit/miss observer.
func (c *DirCache) SetObserver(o Observer) {
	c.observer = o
}

// List returns the user's files, scanning the directory on a cold read.
// An empty scan is cached too. The returned slice is a copy.
func (c *DirCache) List(userID models.UserID) ([]models.FileRecord, error) {
	c.mu.Lock()
	recs, ok := c.entries.Get(userID)
	c.mu.Unlock()
	if ok {
		c.hit()
		return clone(recs), nil
	}
	c.miss()

	v, err, _ := c.group.Do(userID.String(), func() (any, error) {
		recs, err := c.scan(userID)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []models.FileRecord{}
		}
		c.mu.Lock()
		c.entries.Add(userID, recs)
		c.mu.Unlock()
		return recs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan user %s: %w", userID, err)
	}
	return clone(v.([]models.FileRecord)), nil
}

// Put registers a freshly written file. A record with the same name is
// replaced in place. Without a cached entry this is a no-op; the next List
// scans the directory and will see the file.
func (c *DirCache) Put(userID models.UserID, rec models.FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs, ok := c.entries.Peek(userID)
	if !ok {
		return
	}

	next := make([]models.FileRecord, 0, len(recs)+1)
	replaced := false
	for _, r := range recs {
		if r.Name == rec.Name {
			next = append(next, rec)
			replaced = true
			continue
		}
		next = append(next, r)
	}
	if !replaced {
		next = append(next, rec)
	}
	c.entries.Add(userID, next)
}

// Remove drops the named record from the user's cached listing, if any.
func (c *DirCache) Remove(userID models.UserID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs, ok := c.entries.Peek(userID)
	if !ok {
		return
	}

	next := make([]models.FileRecord, 0, len(recs))
	for _, r := range recs {
		if r.Name != name {
			next = append(next, r)
		}
	}
	c.entries.Add(userID, next)
}

// Invalidate forgets the user's listing.
func (c *DirCache) Invalidate(userID models.UserID) {
	c.mu.Lock()
	c.entries.Remove(userID)
	c.mu.Unlock()
}

// Len reports how many users currently have a cached listing.
func (c *DirCache) Len() int {
	return c.entries.Len()
}

func (c *DirCache) hit() {
	if c.observer != nil {
		c.observer.CacheHit()
	}
}

func (c *DirCache) miss() {
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}

func clone(recs []models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, len(recs))
	copy(out, recs)
	return out
}
