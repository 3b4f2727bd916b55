package datasource

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/seenimoa/fnopart/pkg/utils"
)

// DefaultSnapshotTTL is how long a fetched snapshot stays fresh.
const DefaultSnapshotTTL = 6 * time.Hour

// SnapshotCache keeps fetched snapshots per (previous, current) pair.
// Concurrent fills of the same key are allowed; the last write wins.
type SnapshotCache struct {
	c *gocache.Cache
}

// NewSnapshotCache creates a cache whose entries expire after ttl.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{c: gocache.New(ttl, ttl/2)}
}

// SnapshotKey formats the cache key for a date pair.
func SnapshotKey(previous, current time.Time) string {
	return utils.DateOnly(previous).Format("2006-01-02") + "|" + utils.DateOnly(current).Format("2006-01-02")
}

// Get returns the cached snapshot for a date pair, if still fresh.
func (s *SnapshotCache) Get(previous, current time.Time) (*RawSnapshot, bool) {
	v, ok := s.c.Get(SnapshotKey(previous, current))
	if !ok {
		return nil, false
	}
	snap, ok := v.(*RawSnapshot)
	return snap, ok
}

// Set stores a snapshot under its date pair.
func (s *SnapshotCache) Set(snap *RawSnapshot) {
	s.c.SetDefault(SnapshotKey(snap.Previous, snap.Current), snap)
}

// Len returns the number of entries, expired ones included until swept.
func (s *SnapshotCache) Len() int { return s.c.ItemCount() }

// Clear drops every entry immediately.
func (s *SnapshotCache) Clear() { s.c.Flush() }
