// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"
	"errors"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
	"github.com/LeeDigitalWorks/imagepipe/pkg/striper"
)

// ReadAdvice tunes readahead; Random suppresses the advisory prefetch
// the same way RANDOM does in the op-flags this models.
type ReadAdvice int

const (
	ReadAdviceNormal ReadAdvice = iota
	ReadAdviceRandom
)

// ImageRead is one or more source extents read into dst.
type ImageRead struct {
	Ictx    *image.Ctx
	C       *aio.Completion
	Extents []image.ImageExtent
	Dst     []byte
	Advice  ReadAdvice
}

// NewImageRead builds a single-extent read targeting dst.
func NewImageRead(ictx *image.Ctx, c *aio.Completion, offset uint64, dst []byte) *ImageRead {
	return &ImageRead{
		Ictx:    ictx,
		C:       c,
		Extents: []image.ImageExtent{{Offset: offset, Length: uint64(len(dst))}},
		Dst:     dst,
	}
}

func (r *ImageRead) Send(ctx context.Context) {
	sendWithCheck(ctx, r.Ictx, r.C, r.sendRequest)
}

func (r *ImageRead) sendRequest(ctx context.Context) {
	if r.Ictx.Cache != nil && r.Ictx.Config.ReadaheadMaxBytes > 0 && r.Advice != ReadAdviceRandom {
		// No readahead collaborator is wired: this step only logs that
		// the advisory prefetch was skipped, and no data is fetched.
		logger.Ctx(ctx).Debug().Str("image", r.Ictx.Name).Msg("imagerequest: readahead advisory skipped (no readahead collaborator wired)")
	}

	r.Ictx.SnapLock.RLock()
	objectExtents, bufLen, err := r.clipAndStripe()
	r.Ictx.SnapLock.RUnlock()

	if err != nil {
		r.C.Fail(ioerr.CodeFromError(err))
		return
	}

	r.C.SetReadTarget(aio.NewSingleBufferTarget(r.Dst[:bufLen]))
	r.C.SetExpectedLength(bufLen)

	if len(objectExtents) == 0 {
		r.C.FinishAddingRequests()
		return
	}

	for _, objno := range striper.SortedObjectNumbers(objectExtents) {
		oe := objectExtents[objno]
		if err := r.C.AddRequest(); err != nil {
			break
		}
		go r.dispatchChild(ctx, oe)
	}

	r.C.FinishAddingRequests()
}

func (r *ImageRead) clipAndStripe() (map[uint64]*image.ObjectExtent, uint64, error) {
	out := make(map[uint64]*image.ObjectExtent)
	var bufOfs uint64
	for _, ext := range r.Extents {
		clipped, err := r.Ictx.Clip(ext.Offset, ext.Length)
		if err != nil {
			return nil, 0, err
		}
		if clipped == 0 {
			continue
		}
		striper.AppendObjectExtents(out, r.Ictx.Layout, r.Ictx.ObjectPrefix, ext.Offset, clipped, bufOfs)
		bufOfs += clipped
	}
	return out, bufOfs, nil
}

// dispatchChild runs on its own goroutine, mirroring how the real object
// and cache layers deliver completions on a callback thread rather than
// the issuing goroutine.
func (r *ImageRead) dispatchChild(ctx context.Context, oe *image.ObjectExtent) {
	data, code := r.readOneObject(ctx, oe)
	if code < 0 {
		r.C.CompleteRequest(code)
		return
	}
	for _, be := range oe.BufferExtents {
		if be.Length == 0 {
			continue
		}
		chunk := takeFromFront(&data, be.Length)
		r.C.CompleteRead(be.BufferOffset, chunk, 0)
	}
}

func takeFromFront(data *[]byte, n uint64) []byte {
	avail := uint64(len(*data))
	if n > avail {
		n = avail
	}
	chunk := (*data)[:n]
	*data = (*data)[n:]
	return chunk
}

func (r *ImageRead) readOneObject(ctx context.Context, oe *image.ObjectExtent) ([]byte, int) {
	if r.Ictx.Cache != nil {
		data, err := r.Ictx.Cache.Read(ctx, oe.ObjectName, oe.ObjectOffset, oe.Length)
		if err == nil {
			return padTo(data, oe.Length), 0
		}
		if !errors.Is(err, ioerr.ErrCacheMiss) {
			return nil, ioerr.CodeFromError(err)
		}
		// Cache miss: the fallback re-reads the whole object from the
		// backing store and populates the cache, rather than trying to
		// reason about a partial hit.
		full, err := r.Ictx.Store.Read(ctx, oe.ObjectName, 0, r.Ictx.Layout.ObjectSize)
		if err != nil {
			return nil, ioerr.CodeFromError(err)
		}
		r.Ictx.Cache.Populate(oe.ObjectName, full)
		return extractRange(full, oe.ObjectOffset, oe.Length), 0
	}

	data, err := r.Ictx.Store.Read(ctx, oe.ObjectName, oe.ObjectOffset, oe.Length)
	if err != nil {
		return nil, ioerr.CodeFromError(err)
	}
	return padTo(data, oe.Length), 0
}

// padTo zero-extends a short read (a sparse object's unwritten tail)
// out to the requested length, matching "read past end of object
// returns zeros" semantics.
func padTo(data []byte, length uint64) []byte {
	if uint64(len(data)) >= length {
		return data[:length]
	}
	out := make([]byte, length)
	copy(out, data)
	return out
}

func extractRange(data []byte, offset, length uint64) []byte {
	if offset >= uint64(len(data)) {
		return make([]byte, length)
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	out := make([]byte, length)
	copy(out, data[offset:end])
	return out
}
