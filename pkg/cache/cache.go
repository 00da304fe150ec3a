// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the write-back object cache that sits in
// front of objectstore.Store. It caches whole objects: a read against an
// object not resident in the cache is a miss, and the caller is expected
// to fall through to the backing store and populate the cache with what
// it fetched.
package cache

import (
	"context"
	"sync"

	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/objectstore"
)

// ByteRange is a half-open [Offset, Offset+Length) range within one
// object, used both for request extents and for dirty-range tracking.
type ByteRange struct {
	Offset uint64
	Length uint64
}

func (r ByteRange) End() uint64 { return r.Offset + r.Length }

func (r ByteRange) overlaps(o ByteRange) bool {
	return r.Offset < o.End() && o.Offset < r.End()
}

// Cache is the collaborator ImageRequest consults before falling through
// to the object store. It is deliberately agnostic of image snapshots or
// journal tids: per spec, cache entries are whole-object and carry no
// per-write provenance, so a miss always means "go read the object layer
// at HEAD", never "go replay the journal".
type Cache interface {
	// Read returns the object's cached bytes in [offset, offset+length).
	// Returns ErrCacheMiss if the object is not resident.
	Read(ctx context.Context, oid string, offset, length uint64) ([]byte, error)

	// Populate inserts or replaces the full cached image of an object,
	// used after a caller fills a miss from the backing store.
	Populate(oid string, data []byte)

	// Write applies data at offset to the cached copy (creating one if
	// absent) and marks the range dirty for the next Flush.
	Write(ctx context.Context, oid string, offset uint64, data []byte) error

	// Discard zeroes [offset, offset+length) in the cached copy, or
	// evicts the entry entirely if wholeObject covers it, and marks the
	// range dirty so the discard reaches the backing store on Flush.
	Discard(ctx context.Context, oid string, offset, length uint64, wholeObject bool) error

	// Flush writes every dirty range of oid through to store and clears
	// the dirty set on success.
	Flush(ctx context.Context, store objectstore.Store, oid string) error

	// FlushAll flushes every resident object.
	FlushAll(ctx context.Context, store objectstore.Store) error

	// Invalidate drops oid from the cache without flushing it.
	Invalidate(oid string)

	// Len reports the number of resident objects, for tests and metrics.
	Len() int
}

type entry struct {
	mu    sync.Mutex
	data  []byte
	dirty []ByteRange
	evict bool
}

// ShardedCache is the default Cache: one entry per object, entries
// striped across shardedMap's buckets to keep cross-object contention
// low, matching the sharding strategy the rest of this codebase uses for
// its concurrent maps.
type ShardedCache struct {
	entries *shardedMap[*entry]
}

// NewShardedCache creates an empty cache.
func NewShardedCache() *ShardedCache {
	return &ShardedCache{entries: newShardedMap[*entry]()}
}

func (c *ShardedCache) Read(ctx context.Context, oid string, offset, length uint64) ([]byte, error) {
	e, ok := c.entries.Load(oid)
	if !ok {
		CacheMissesTotal.Inc()
		return nil, ioerr.ErrCacheMiss
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evict {
		CacheMissesTotal.Inc()
		return nil, ioerr.ErrCacheMiss
	}

	end := offset + length
	if end > uint64(len(e.data)) {
		end = uint64(len(e.data))
	}
	if offset >= end {
		CacheHitsTotal.Inc()
		return nil, nil
	}
	out := make([]byte, end-offset)
	copy(out, e.data[offset:end])
	CacheHitsTotal.Inc()
	return out, nil
}

func (c *ShardedCache) Populate(oid string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.entries.Store(oid, &entry{data: cp})
	CacheEntriesGauge.Set(float64(c.entries.Len()))
}

func (c *ShardedCache) Write(ctx context.Context, oid string, offset uint64, data []byte) error {
	e, _ := c.entries.LoadOrStore(oid, &entry{})
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evict = false
	need := offset + uint64(len(data))
	if uint64(len(e.data)) < need {
		grown := make([]byte, need)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[offset:], data)
	e.dirty = mergeDirty(e.dirty, ByteRange{Offset: offset, Length: uint64(len(data))})
	CacheEntriesGauge.Set(float64(c.entries.Len()))
	return nil
}

func (c *ShardedCache) Discard(ctx context.Context, oid string, offset, length uint64, wholeObject bool) error {
	e, ok := c.entries.Load(oid)
	if !ok {
		if wholeObject {
			return nil
		}
		e, _ = c.entries.LoadOrStore(oid, &entry{})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if wholeObject && offset == 0 && length >= uint64(len(e.data)) {
		e.data = nil
		e.evict = true
		e.dirty = []ByteRange{{Offset: offset, Length: length}}
		return nil
	}

	end := offset + length
	if end > uint64(len(e.data)) {
		end = uint64(len(e.data))
	}
	for i := offset; i < end; i++ {
		e.data[i] = 0
	}
	e.dirty = mergeDirty(e.dirty, ByteRange{Offset: offset, Length: length})
	return nil
}

func (c *ShardedCache) Flush(ctx context.Context, store objectstore.Store, oid string) error {
	e, ok := c.entries.Load(oid)
	if !ok {
		return nil
	}

	e.mu.Lock()
	dirty := e.dirty
	e.dirty = nil
	evict := e.evict
	data := e.data
	e.mu.Unlock()

	for _, r := range dirty {
		if evict {
			if err := store.Discard(ctx, oid, r.Offset, r.Length, true); err != nil {
				return err
			}
			continue
		}
		end := r.End()
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		if r.Offset >= end {
			continue
		}
		if err := store.Write(ctx, oid, r.Offset, data[r.Offset:end]); err != nil {
			return err
		}
	}
	CacheFlushesTotal.Inc()
	return nil
}

func (c *ShardedCache) FlushAll(ctx context.Context, store objectstore.Store) error {
	var oids []string
	c.entries.Range(func(key string, _ *entry) bool {
		oids = append(oids, key)
		return true
	})
	for _, oid := range oids {
		if err := c.Flush(ctx, store, oid); err != nil {
			return err
		}
	}
	return nil
}

func (c *ShardedCache) Invalidate(oid string) {
	c.entries.Delete(oid)
	CacheEntriesGauge.Set(float64(c.entries.Len()))
}

func (c *ShardedCache) Len() int {
	return c.entries.Len()
}

// mergeDirty appends r to dirty, or coalesces it into the first existing
// range it touches or overlaps. Dirty sets stay small in practice (writes to one
// object tend to be sequential), so this linear scan is cheap.
func mergeDirty(dirty []ByteRange, r ByteRange) []ByteRange {
	for i, d := range dirty {
		if d.overlaps(r) || d.End() == r.Offset || r.End() == d.Offset {
			start := min(d.Offset, r.Offset)
			end := max(d.End(), r.End())
			dirty[i] = ByteRange{Offset: start, Length: end - start}
			return dirty
		}
	}
	return append(dirty, r)
}
