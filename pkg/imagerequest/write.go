// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/journal"
	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
	"github.com/LeeDigitalWorks/imagepipe/pkg/striper"
)

// childWork is one object extent's unit of work. run returns the child's
// result code; whoever runs it (its own goroutine, or the journal's
// dispatch goroutine via runChildren) reports that code through
// c.CompleteRequest.
type childWork struct {
	oe   *image.ObjectExtent
	run  func(ctx context.Context) int // returns a negative-errno code
}

// abstractWriteResult is what clipAndPrepareWrite hands back to the
// write/discard variants once the common snap-lock-guarded steps have
// run.
type abstractWriteResult struct {
	extents map[uint64]*image.ObjectExtent
	snapc   image.SnapContext
	length  uint64
}

// clipAndPrepareWrite implements AbstractImageWrite step 1: reject
// writes to a non-HEAD snapshot or a read-only image, clip the extent
// against image size, record the clipped length on the completion,
// capture the snapshot context, and stripe it into object extents.
// Returns ok=false if the completion was already failed and the caller
// must return immediately.
func clipAndPrepareWrite(ictx *image.Ctx, c *aio.Completion, offset, length uint64) (abstractWriteResult, bool) {
	ictx.SnapLock.RLock()
	defer ictx.SnapLock.RUnlock()

	if ictx.SnapID() != image.HeadSnapID || ictx.ReadOnly() {
		c.Fail(ioerr.CodeFromError(ioerr.ErrReadOnly))
		return abstractWriteResult{}, false
	}

	clipped, err := ictx.Clip(offset, length)
	if err != nil {
		c.Fail(ioerr.CodeFromError(err))
		return abstractWriteResult{}, false
	}
	c.SetExpectedLength(clipped)

	extents := striper.ToObjectExtents(ictx.Layout, ictx.ObjectPrefix, offset, clipped, 0)
	return abstractWriteResult{extents: extents, snapc: ictx.SnapContext(), length: clipped}, true
}

// dispatchWriteChildren implements AbstractImageWrite steps 2-5: it adds
// one pending child per object extent, then either journals them (one
// event covering every child, replayed in tid order relative to other
// journal entries) or runs them directly on their own goroutines.
func dispatchWriteChildren(ctx context.Context, ictx *image.Ctx, c *aio.Completion, kind journal.EventKind, eventOffset, eventLength uint64, eventData []byte, works []childWork) {
	for range works {
		if err := c.AddRequest(); err != nil {
			c.FinishAddingRequests()
			return
		}
	}

	journaling := ictx.Journal != nil
	if journaling {
		tid, err := ictx.Journal.Append(ctx, kind, eventOffset, eventLength, eventData, func(ctx context.Context, tid uint64) error {
			return runChildren(ctx, c, works)
		})
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("imagerequest: journal append failed, running children directly")
			journaling = false
		} else {
			logger.Ctx(ctx).Debug().Uint64("tid", tid).Str("kind", kind.String()).Msg("imagerequest: appended journal event")
		}
	}

	if !journaling {
		for _, w := range works {
			go func(w childWork) {
				code := w.run(ctx)
				c.CompleteRequest(code)
			}(w)
		}
	}

	c.FinishAddingRequests()
}

// runChildren executes every child's work sequentially and reports each
// result to the completion; it runs on the journal's own dispatch
// goroutine once the entry covering it is durable, so ordering relative
// to other journal entries on this image is preserved.
func runChildren(ctx context.Context, c *aio.Completion, works []childWork) error {
	var firstErr error
	for _, w := range works {
		code := w.run(ctx)
		c.CompleteRequest(code)
		if code < 0 && firstErr == nil {
			firstErr = ioerr.ErrorFromCode(code)
		}
	}
	return firstErr
}

// ImageWrite writes Data at Offset.
type ImageWrite struct {
	Ictx   *image.Ctx
	C      *aio.Completion
	Offset uint64
	Data   []byte
}

func (w *ImageWrite) Send(ctx context.Context) {
	sendWithCheck(ctx, w.Ictx, w.C, w.sendRequest)
}

func (w *ImageWrite) sendRequest(ctx context.Context) {
	w.Ictx.MdLock.RLock()
	defer w.Ictx.MdLock.RUnlock()

	result, ok := clipAndPrepareWrite(w.Ictx, w.C, w.Offset, uint64(len(w.Data)))
	if !ok {
		return
	}
	if result.length == 0 {
		w.C.FinishAddingRequests()
		return
	}

	works := make([]childWork, 0, len(result.extents))
	for _, objno := range striper.SortedObjectNumbers(result.extents) {
		oe := result.extents[objno]
		payload := assembleExtent(w.Data, oe)
		works = append(works, childWork{oe: oe, run: func(ctx context.Context) int {
			return w.sendObjectRequest(ctx, oe, payload, result.snapc)
		}})
	}

	dispatchWriteChildren(ctx, w.Ictx, w.C, journal.EventWrite, w.Offset, result.length, w.Data, works)
}

// assembleExtent gathers the wire payload for one object write from the
// caller's buffer, following the object extent's back-mapping slices.
func assembleExtent(data []byte, oe *image.ObjectExtent) []byte {
	payload := make([]byte, 0, oe.Length)
	for _, be := range oe.BufferExtents {
		end := be.BufferOffset + be.Length
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		if be.BufferOffset >= end {
			continue
		}
		payload = append(payload, data[be.BufferOffset:end]...)
	}
	return payload
}

// sendObjectRequest is the variant hook: when a cache is attached, the
// cache owns the write and no object-layer call happens directly;
// otherwise this issues the write against the backing store.
func (w *ImageWrite) sendObjectRequest(ctx context.Context, oe *image.ObjectExtent, payload []byte, snapc image.SnapContext) int {
	if w.Ictx.Cache != nil {
		if err := w.Ictx.Cache.Write(ctx, oe.ObjectName, oe.ObjectOffset, payload); err != nil {
			return ioerr.CodeFromError(err)
		}
		return 0
	}
	if err := w.Ictx.Store.Write(ctx, oe.ObjectName, oe.ObjectOffset, payload); err != nil {
		return ioerr.CodeFromError(err)
	}
	w.Ictx.MarkTouched(oe.ObjectName)
	return 0
}
