// Package cache persists enrichment records in a local key/value medium.
//
// Entries live under a schema-versioned namespace and expire after a fixed
// TTL. Entries that cannot be read back (malformed, expired or failing the
// record schema) are removed on read. Storage errors are logged and never
// surfaced to callers.
package cache

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
)

// Namespace prefixes every cache key in the medium.
const Namespace = "musicinfo_" + musicinfo.SchemaVersion + "_"

// DefaultTTL is how long an entry stays valid after it is written.
const DefaultTTL = 7 * 24 * time.Hour

// KV is the durable string medium the cache writes to.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
	RemovePrefix(prefix string) (int, error)
}

// Entry is the persisted form of a cached record.
type Entry struct {
	Data      musicinfo.Record `json:"data"`
	Timestamp int64            `json:"timestamp"`
}

// EntryInfo describes one stored entry for listing.
type EntryInfo struct {
	Key       string
	StoredAt  time.Time
	Age       time.Duration
	GroupName string
	Degraded  bool
	Malformed bool
}

// Store is the persistent cache.
type Store struct {
	kv     KV
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a cache over kv.
func New(kv KV, log *logger.Logger, opts ...Option) *Store {
	s := &Store{kv: kv, ttl: DefaultTTL, now: time.Now, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record stored under key. Unreadable, expired or invalid
// entries are deleted and reported as absent.
func (s *Store) Get(key string) (musicinfo.Record, bool) {
	raw, ok, err := s.kv.Get(Namespace + key)
	if err != nil {
		s.logger.Warn("cache read %s failed: %v", key, err)
		return musicinfo.Record{}, false
	}
	if !ok {
		return musicinfo.Record{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Debug("cache entry %s is malformed, removing: %v", key, err)
		s.Delete(key)
		return musicinfo.Record{}, false
	}
	if s.expired(entry.Timestamp) {
		s.logger.Debug("cache entry %s expired, removing", key)
		s.Delete(key)
		return musicinfo.Record{}, false
	}
	if !entry.Data.Valid() {
		s.logger.Debug("cache entry %s has no group name, removing", key)
		s.Delete(key)
		return musicinfo.Record{}, false
	}
	return entry.Data, true
}

// Put stores rec under key with the current time.
func (s *Store) Put(key string, rec musicinfo.Record) {
	data, err := json.Marshal(Entry{Data: rec, Timestamp: s.now().UnixMilli()})
	if err != nil {
		s.logger.Warn("cache encode %s failed: %v", key, err)
		return
	}
	if err := s.kv.Set(Namespace+key, string(data)); err != nil {
		s.logger.Warn("cache write %s failed: %v", key, err)
	}
}

// Delete removes one entry.
func (s *Store) Delete(key string) {
	if err := s.kv.Remove(Namespace + key); err != nil {
		s.logger.Warn("cache delete %s failed: %v", key, err)
	}
}

// Clear removes key, or the whole namespace when key is empty.
func (s *Store) Clear(key string) {
	if key == "" {
		s.ClearAll()
		return
	}
	s.Delete(key)
}

// ClearAll removes every entry in the namespace. Keys outside it are kept.
func (s *Store) ClearAll() {
	n, err := s.kv.RemovePrefix(Namespace)
	if err != nil {
		s.logger.Warn("cache clear failed: %v", err)
		return
	}
	s.logger.Debug("cache cleared, %d entries removed", n)
}

// Exists reports whether any entry is stored in the namespace. Entries are
// not validated.
func (s *Store) Exists() bool {
	keys, err := s.kv.Keys(Namespace)
	if err != nil {
		s.logger.Warn("cache scan failed: %v", err)
		return false
	}
	return len(keys) > 0
}

// List describes every stored entry, newest first. Malformed entries are
// included with a zero StoredAt.
func (s *Store) List() []EntryInfo {
	keys, err := s.kv.Keys(Namespace)
	if err != nil {
		s.logger.Warn("cache scan failed: %v", err)
		return nil
	}

	now := s.now()
	infos := make([]EntryInfo, 0, len(keys))
	for _, full := range keys {
		info := EntryInfo{Key: strings.TrimPrefix(full, Namespace)}

		raw, ok, err := s.kv.Get(full)
		if err != nil || !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			info.Malformed = true
			infos = append(infos, info)
			continue
		}
		info.StoredAt = time.UnixMilli(entry.Timestamp)
		info.Age = now.Sub(info.StoredAt)
		info.GroupName = entry.Data.Artist.GroupName
		info.Degraded = entry.Data.Degraded()
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].StoredAt.After(infos[j].StoredAt)
	})
	return infos
}

func (s *Store) expired(timestamp int64) bool {
	return s.now().Sub(time.UnixMilli(timestamp)) > s.ttl
}
