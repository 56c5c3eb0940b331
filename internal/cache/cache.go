// Package cache implements the content-addressed segment audio cache.
//
// Entries are immutable once written and shared across every episode that
// reuses the same fingerprint. The cache is strictly best-effort on the
// write path and never lets a storage problem become a generation failure:
// read errors degrade to misses, and an entry without duration metadata (a
// "legacy" entry from before durations were stored) is treated exactly like
// an absent one.
package cache

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/metrics"
	"github.com/strollcast/director/internal/storage"
)

// Entry is one cached segment: normalized MP3 bytes and the provider-measured
// duration in seconds.
type Entry struct {
	Audio    []byte
	Duration float64
}

// Cache is a content-addressed store for synthesized segment audio.
type Cache struct {
	store storage.ObjectStore
	log   zerolog.Logger
}

// New creates a segment cache over the given object store.
func New(store storage.ObjectStore, log zerolog.Logger) *Cache {
	return &Cache{
		store: store,
		log:   log.With().Str("component", "segment-cache").Logger(),
	}
}

// Get looks up a segment by fingerprint. The second return value reports a
// hit. Storage errors and entries without usable duration metadata both
// degrade to a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool) {
	r, meta, err := c.store.Open(ctx, objectKey(key))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		}
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	defer r.Close()

	duration, ok := durationFromMeta(meta)
	if !ok {
		// Legacy entry without duration metadata. Unusable: the timeline
		// needs measured durations, so this behaves exactly like absence.
		c.log.Debug().Str("key", key).Msg("cache entry missing duration metadata, treating as miss")
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	audio, err := io.ReadAll(r)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache body read failed, treating as miss")
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	metrics.CacheHitsTotal.Inc()
	return &Entry{Audio: audio, Duration: duration}, true
}

// Duration returns the stored duration for a fingerprint without fetching
// the audio body. Misses and legacy entries report false.
func (c *Cache) Duration(ctx context.Context, key string) (float64, bool) {
	meta, err := c.store.Head(ctx, objectKey(key))
	if err != nil {
		return 0, false
	}
	return durationFromMeta(meta)
}

// Contains reports whether a usable entry exists for the fingerprint.
func (c *Cache) Contains(ctx context.Context, key string) bool {
	_, ok := c.Duration(ctx, key)
	return ok
}

// Put stores a segment. Writes are best-effort: a failure is logged and
// counted but never propagated, since the synthesized audio is already in
// hand and the episode can proceed without the cache.
func (c *Cache) Put(ctx context.Context, key string, audio []byte, duration float64) {
	meta := map[string]string{
		storage.MetaDuration: strconv.FormatFloat(duration, 'f', -1, 64),
	}
	if err := c.store.Save(ctx, objectKey(key), audio, "audio/mpeg", meta); err != nil {
		metrics.CacheWriteErrorsTotal.Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed, continuing without caching")
	}
}

// URL returns a time-limited read URL for a cached segment, for handing to
// the concatenation worker.
func (c *Cache) URL(ctx context.Context, key string) (string, error) {
	return c.store.GetURL(ctx, objectKey(key))
}

func objectKey(key string) string {
	return "segments/" + key + ".mp3"
}

func durationFromMeta(meta map[string]string) (float64, bool) {
	raw, ok := meta[storage.MetaDuration]
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
