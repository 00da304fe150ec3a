// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"
	"testing"

	"github.com/LeeDigitalWorks/imagepipe/pkg/cache"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/objectstore"
)

// newTestCtx builds a minimal image context backed by an in-memory
// store, with no cache, journal, or watcher attached unless the test
// wires one in afterward.
func newTestCtx(size uint64, layout image.Layout) *image.Ctx {
	ictx := image.NewCtx("test", "rbd_data.test", size, layout)
	ictx.Store = objectstore.NewMemory()
	return ictx
}

// trackingStore wraps Memory to record which oids Flush was called for,
// so a no-cache ImageFlush test can assert the downstream flush reached
// exactly the objects a prior write touched.
type trackingStore struct {
	*objectstore.Memory
	flushed []string
}

func newTrackingStore() *trackingStore {
	return &trackingStore{Memory: objectstore.NewMemory()}
}

func (s *trackingStore) Flush(ctx context.Context, oid string) error {
	s.flushed = append(s.flushed, oid)
	return s.Memory.Flush(ctx, oid)
}

// newTestCacheWithData populates a fresh ShardedCache with data at
// object 0, for tests exercising a cache-backed discard or write
// without going through a prior read-miss populate.
func newTestCacheWithData(t *testing.T, ictx *image.Ctx, data string) cache.Cache {
	t.Helper()
	c := cache.NewShardedCache()
	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	c.Populate(oid, []byte(data))
	return c
}

// seqDrainer is a Drainer whose DrainThenNotify calls before (when set)
// and then done, so a test can observe state at the moment the drain
// runs, ahead of the downstream flush.
type seqDrainer struct {
	before func()
}

func (d seqDrainer) DrainThenNotify(ctx context.Context, done func()) {
	if d.before != nil {
		d.before()
	}
	done()
}
