// Package enrich resolves a track identity into a complete music-info
// record. It consults the cache first, then composes the generated
// narrative with catalog imagery, degrades to a fallback record when the
// text provider fails, and caches whatever it returns.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"musicinfo/internal/cache"
	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
)

// ErrCancelled is returned when the caller's context ends before the record
// is complete. Nothing is cached in that case.
var ErrCancelled = fmt.Errorf("enrichment cancelled: %w", context.Canceled)

// TextProvider generates the narrative part of a record.
type TextProvider interface {
	Describe(ctx context.Context, id musicinfo.Identity) (musicinfo.Record, error)
}

// Orchestrator coordinates the cache and the providers.
type Orchestrator struct {
	cache    *cache.Store
	text     TextProvider
	backfill musicinfo.ArtistProvider
	logger   *logger.Logger
}

// New creates an orchestrator. backfill is usually a musicinfo.Chain of
// the streaming catalog followed by the media catalog; it may be nil.
func New(store *cache.Store, text TextProvider, backfill musicinfo.ArtistProvider, log *logger.Logger) *Orchestrator {
	return &Orchestrator{cache: store, text: text, backfill: backfill, logger: log}
}

// Enrich returns the record for id, from cache when possible.
func (o *Orchestrator) Enrich(ctx context.Context, id musicinfo.Identity) (musicinfo.Record, error) {
	key := musicinfo.DeriveKey(id)
	if rec, ok := o.cache.Get(key); ok {
		o.logger.Debug("cache hit for %s (%s)", id, key)
		return rec, nil
	}
	if ctx.Err() != nil {
		return musicinfo.Record{}, ErrCancelled
	}

	rec, err := o.text.Describe(ctx, id)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			o.logger.Debug("enrichment of %s cancelled", id)
			return musicinfo.Record{}, ErrCancelled
		}
		o.logger.Warn("text provider failed for %s, using fallback record: %v", id, err)
		rec = musicinfo.Fallback(id, err)
	}

	if o.backfill != nil {
		if p, ok := o.backfill.FetchArtist(ctx, id.Artist); ok {
			rec.Merge(p)
		}
	}

	rec = musicinfo.Normalize(rec, id)

	if ctx.Err() != nil {
		o.logger.Debug("enrichment of %s cancelled before caching", id)
		return musicinfo.Record{}, ErrCancelled
	}
	o.cache.Put(key, rec)
	o.logger.Info("enriched %s", id)
	return rec, nil
}

// GenerateCacheKey derives the cache key for id.
func (o *Orchestrator) GenerateCacheKey(id musicinfo.Identity) string {
	return musicinfo.DeriveKey(id)
}

// CachedData returns the cached record for key, if any.
func (o *Orchestrator) CachedData(key string) (musicinfo.Record, bool) {
	return o.cache.Get(key)
}

// ClearCache removes key, or every cached record when key is empty.
func (o *Orchestrator) ClearCache(key string) {
	o.cache.Clear(key)
}

// HasCachedData reports whether any record is cached.
func (o *Orchestrator) HasCachedData() bool {
	return o.cache.Exists()
}

// CacheEntries lists the cached records, newest first.
func (o *Orchestrator) CacheEntries() []cache.EntryInfo {
	return o.cache.List()
}
