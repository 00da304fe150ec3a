// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/LeeDigitalWorks/imagepipe/pkg/cache"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/journal"
	"github.com/LeeDigitalWorks/imagepipe/pkg/objectstore"
	"github.com/LeeDigitalWorks/imagepipe/pkg/watcher"
)

// SnapID identifies a snapshot. HeadSnapID means "the live image", the
// only snap id a write or discard is allowed to target.
type SnapID uint64

const HeadSnapID SnapID = 0

// SnapContext is the set of snapshot ids a write must additionally be
// recorded against for copy-on-write, plus the id that will become the
// most recent snapshot once one is taken.
type SnapContext struct {
	Seq    uint64
	SnapIDs []SnapID
}

// Config is the set of image-level policy knobs the pipeline consults;
// all other collaborator behavior lives behind the Cache/Journal/Watcher
// interfaces themselves.
type Config struct {
	// NonBlockingAIO forces every aio_* call through the work queue
	// even when it could otherwise run inline.
	NonBlockingAIO bool

	// SkipPartialDiscard drops partial-object discard child ops instead
	// of issuing a real zero-fill I/O.
	SkipPartialDiscard bool

	// ReadaheadMaxBytes enables advisory readahead on cache-backed
	// reads when greater than zero.
	ReadaheadMaxBytes uint64
}

// Ctx is the non-owning handle every ImageRequest and the work queue
// operate against. Per the design note on ImageCtx/WQ cyclic references,
// Ctx is the sole owner of its collaborators; callers must Close it
// before letting go of the last reference so Cache/Journal/Watcher tear
// down deterministically rather than relying on GC finalizers.
type Ctx struct {
	Name         string
	ObjectPrefix string
	Layout       Layout

	Store   objectstore.Store
	Cache   cache.Cache // nil if this image has no cache attached
	Journal journal.Journal // nil if this image has no journal attached
	Watcher watcher.Watcher // nil if this image has no advisory lock

	Config Config

	// OwnerLock is held shared across every ImageRequest.send and
	// exclusive only by lifecycle operations (not modeled here).
	OwnerLock sync.RWMutex
	// MdLock is held shared during writes/discards.
	MdLock sync.RWMutex
	// SnapLock is held shared during clip+record.
	SnapLock sync.RWMutex
	// CacheLock serializes cache discard_set calls.
	CacheLock sync.Mutex

	mu          sync.RWMutex
	size        uint64
	snapID      SnapID
	snapContext SnapContext
	readOnly    bool

	touchedMu sync.Mutex
	touched   map[string]struct{}

	closed atomic.Bool
}

// NewCtx constructs an image context for a HEAD-only, read-write image
// of the given size and layout. Collaborators may be nil.
func NewCtx(name, objectPrefix string, size uint64, layout Layout) *Ctx {
	return &Ctx{
		Name:         name,
		ObjectPrefix: objectPrefix,
		Layout:       layout,
		size:         size,
		snapID:       HeadSnapID,
	}
}

// Size returns the current image size. Callers on the read path should
// hold SnapLock (shared) across Size+Clip so size cannot change between
// the two, per the snap-lock invariant in the clip path.
func (c *Ctx) Size() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// SetSize updates the image size, e.g. after a resize operation outside
// this package's scope.
func (c *Ctx) SetSize(size uint64) {
	c.mu.Lock()
	c.size = size
	c.mu.Unlock()
}

// SnapID returns the snapshot this context is opened at. HeadSnapID
// means the live image.
func (c *Ctx) SnapID() SnapID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapID
}

// SetSnapID moves this context's view to a different snapshot.
func (c *Ctx) SetSnapID(id SnapID) {
	c.mu.Lock()
	c.snapID = id
	c.mu.Unlock()
}

// SnapContext returns the snapshot context a write should be recorded
// against.
func (c *Ctx) SnapContext() SnapContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapContext
}

func (c *Ctx) SetSnapContext(sc SnapContext) {
	c.mu.Lock()
	c.snapContext = sc
	c.mu.Unlock()
}

// ReadOnly reports whether this context forbids mutation regardless of
// snapshot id (e.g. opened explicitly read-only).
func (c *Ctx) ReadOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readOnly
}

func (c *Ctx) SetReadOnly(ro bool) {
	c.mu.Lock()
	c.readOnly = ro
	c.mu.Unlock()
}

// MarkTouched records oid as written-since-last-flush. It is only
// consulted when no cache is attached: a cache tracks its own dirty
// ranges, but a direct-to-store write still needs to tell a later
// ImageFlush which objects it must durability-barrier.
func (c *Ctx) MarkTouched(oid string) {
	c.touchedMu.Lock()
	if c.touched == nil {
		c.touched = make(map[string]struct{})
	}
	c.touched[oid] = struct{}{}
	c.touchedMu.Unlock()
}

// DrainTouched returns every oid recorded since the last DrainTouched
// call and resets the set.
func (c *Ctx) DrainTouched() []string {
	c.touchedMu.Lock()
	defer c.touchedMu.Unlock()
	if len(c.touched) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.touched))
	for oid := range c.touched {
		out = append(out, oid)
	}
	c.touched = nil
	return out
}

// Closed reports whether Close has been called.
func (c *Ctx) Closed() bool {
	return c.closed.Load()
}

// Check fails fast once the context has been torn down, before any
// object extents are computed.
func (c *Ctx) Check() error {
	if c.closed.Load() {
		return ioerr.ErrImageClosed
	}
	return nil
}

// Close tears the context down. It must run before the collaborators
// are released, so any future Check() observes ErrImageClosed rather
// than racing a half-torn-down collaborator.
func (c *Ctx) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if c.Journal != nil {
		firstErr = c.Journal.Close(context.Background())
	}
	if c.Watcher != nil {
		if err := c.Watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Clip clips [offset, offset+length) against the image's current size.
// An offset at or beyond the current size clips to a zero-length no-op
// rather than an error. An offset+length overflow is reported as
// ErrInvalidExtent.
func (c *Ctx) Clip(offset, length uint64) (uint64, error) {
	if offset+length < offset {
		return 0, ioerr.ErrInvalidExtent
	}
	size := c.Size()
	if offset >= size {
		return 0, nil
	}
	if offset+length > size {
		return size - offset, nil
	}
	return length, nil
}
