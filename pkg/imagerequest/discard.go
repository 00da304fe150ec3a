// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/journal"
	"github.com/LeeDigitalWorks/imagepipe/pkg/striper"
)

// ImageDiscard punches a hole of Length bytes starting at Offset.
type ImageDiscard struct {
	Ictx   *image.Ctx
	C      *aio.Completion
	Offset uint64
	Length uint64
}

func (d *ImageDiscard) Send(ctx context.Context) {
	sendWithCheck(ctx, d.Ictx, d.C, d.sendRequest)
}

func (d *ImageDiscard) sendRequest(ctx context.Context) {
	d.Ictx.MdLock.RLock()
	defer d.Ictx.MdLock.RUnlock()

	result, ok := clipAndPrepareWrite(d.Ictx, d.C, d.Offset, d.Length)
	if !ok {
		return
	}
	if result.length == 0 {
		d.C.FinishAddingRequests()
		return
	}

	var works []childWork
	for _, objno := range striper.SortedObjectNumbers(result.extents) {
		oe := result.extents[objno]
		kind, skip := discardKind(d.Ictx.Layout.ObjectSize, oe, d.Ictx.Config.SkipPartialDiscard)
		if skip {
			continue
		}
		works = append(works, childWork{oe: oe, run: func(ctx context.Context) int {
			return d.sendObjectRequest(ctx, oe, kind)
		}})
	}

	dispatchWriteChildren(ctx, d.Ictx, d.C, journal.EventDiscard, d.Offset, result.length, nil, works)
}

type discardDispatch int

const (
	discardRemove discardDispatch = iota
	discardTruncate
	discardZero
)

// discardKind is the three-way geometry dispatch: exact-object coverage
// removes the object, end-aligned coverage truncates its tail, and a
// genuinely partial range either zeroes it or is skipped outright when
// skipPartial is set.
func discardKind(objectSize uint64, oe *image.ObjectExtent, skipPartial bool) (discardDispatch, bool) {
	switch {
	case oe.ObjectOffset == 0 && oe.Length == objectSize:
		return discardRemove, false
	case oe.ObjectOffset+oe.Length == objectSize:
		return discardTruncate, false
	default:
		if skipPartial {
			return discardZero, true
		}
		return discardZero, false
	}
}

func (d *ImageDiscard) sendObjectRequest(ctx context.Context, oe *image.ObjectExtent, kind discardDispatch) int {
	if d.Ictx.Cache != nil {
		d.Ictx.CacheLock.Lock()
		wholeObject := kind == discardRemove
		err := d.Ictx.Cache.Discard(ctx, oe.ObjectName, oe.ObjectOffset, oe.Length, wholeObject)
		d.Ictx.CacheLock.Unlock()
		if err != nil {
			return ioerr.CodeFromError(err)
		}
		return 0
	}

	var err error
	switch kind {
	case discardRemove:
		err = d.Ictx.Store.Remove(ctx, oe.ObjectName)
	case discardTruncate:
		err = d.Ictx.Store.Truncate(ctx, oe.ObjectName, oe.ObjectOffset)
	case discardZero:
		err = d.Ictx.Store.Discard(ctx, oe.ObjectName, oe.ObjectOffset, oe.Length, false)
	}
	if err != nil {
		return ioerr.CodeFromError(err)
	}
	d.Ictx.MarkTouched(oe.ObjectName)
	return 0
}
