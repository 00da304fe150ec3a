// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/journal"
)

// Drainer is the "flush async operations" collaborator: it waits for
// every outstanding image-level op issued before this flush to finish,
// then calls done. ImageRequestWQ supplies the real implementation (it
// knows about in-flight queued writes); tests may pass a Drainer that
// calls done immediately.
type Drainer interface {
	DrainThenNotify(ctx context.Context, done func())
}

// ImageFlush is a barrier: everything submitted before it must be
// at-least-submitted to the cache/object layer before the downstream
// flush primitive runs.
type ImageFlush struct {
	Ictx    *image.Ctx
	C       *aio.Completion
	Drainer Drainer
}

func (f *ImageFlush) Send(ctx context.Context) {
	sendWithCheck(ctx, f.Ictx, f.C, f.sendRequest)
}

func (f *ImageFlush) sendRequest(ctx context.Context) {
	if f.Ictx.Journal != nil {
		// Flush events carry no data and no children; the journal
		// only needs this so a later replay knows a barrier occurred
		// at this point in the log.
		_, err := f.Ictx.Journal.Append(ctx, journal.EventFlush, 0, 0, nil, func(ctx context.Context, tid uint64) error {
			return nil
		})
		if err != nil {
			f.C.Fail(ioerr.CodeFromError(err))
			return
		}
	}

	if err := f.C.AddRequest(); err != nil {
		f.C.FinishAddingRequests()
		return
	}

	drain := f.Drainer
	if drain == nil {
		drain = noopDrainer{}
	}
	drain.DrainThenNotify(ctx, func() {
		code := f.flushDownstream(ctx)
		f.C.CompleteRequest(code)
	})

	f.C.FinishAddingRequests()
}

func (f *ImageFlush) flushDownstream(ctx context.Context) int {
	if f.Ictx.Cache != nil {
		if err := f.Ictx.Cache.FlushAll(ctx, f.Ictx.Store); err != nil {
			return ioerr.CodeFromError(err)
		}
		return 0
	}

	for _, oid := range f.Ictx.DrainTouched() {
		if err := f.Ictx.Store.Flush(ctx, oid); err != nil {
			return ioerr.CodeFromError(err)
		}
	}
	return 0
}

type noopDrainer struct{}

func (noopDrainer) DrainThenNotify(ctx context.Context, done func()) {
	done()
}
