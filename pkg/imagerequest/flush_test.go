// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/cache"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/journal"
)

func newFlushCompletion(done chan struct{}, n *int, resultErr *error) *aio.Completion {
	return aio.New(aio.OpFlush, func(c *aio.Completion) {
		*n, *resultErr = c.Result()
		close(done)
	})
}

func TestImageFlush_NoCacheFlushesTouchedObjects(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	ts := newTrackingStore()
	ictx.Store = ts

	_, _, err := sendWriteAndWait(ictx, 0, []byte("abc"))
	require.NoError(t, err)

	done := make(chan struct{})
	var n int
	var resultErr error
	c := newFlushCompletion(done, &n, &resultErr)
	f := &ImageFlush{Ictx: ictx, C: c}
	f.Send(context.Background())
	<-done

	require.NoError(t, resultErr)
	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	assert.Equal(t, []string{oid}, ts.flushed)
	assert.Empty(t, ictx.DrainTouched(), "flush must drain the touched set")
}

func TestImageFlush_CacheFlushesAllResidentObjects(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	ictx.Cache = cache.NewShardedCache()
	_, _, err := sendWriteAndWait(ictx, 0, []byte("cached"))
	require.NoError(t, err)

	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	stored, err := ictx.Store.Read(context.Background(), oid, 0, 6)
	require.NoError(t, err)
	require.Empty(t, stored, "write must still be cache-resident before flush")

	done := make(chan struct{})
	var n int
	var resultErr error
	c := newFlushCompletion(done, &n, &resultErr)
	f := &ImageFlush{Ictx: ictx, C: c}
	f.Send(context.Background())
	<-done

	require.NoError(t, resultErr)
	stored, err = ictx.Store.Read(context.Background(), oid, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(stored))
}

func TestImageFlush_JournalsBarrierBeforeDraining(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	j := journal.NewMemoryJournal(16)
	require.NoError(t, j.Open(context.Background()))
	defer j.Close(context.Background())
	ictx.Journal = j

	done := make(chan struct{})
	var n int
	var resultErr error
	c := newFlushCompletion(done, &n, &resultErr)
	f := &ImageFlush{Ictx: ictx, C: c}
	f.Send(context.Background())
	<-done

	require.NoError(t, resultErr)
}

func TestImageFlush_DrainRunsBeforeDownstreamFlush(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	ts := newTrackingStore()
	ictx.Store = ts
	_, _, err := sendWriteAndWait(ictx, 0, []byte("x"))
	require.NoError(t, err)

	var drainCalled bool
	var flushedAtDrain int
	drainer := seqDrainer{before: func() {
		drainCalled = true
		flushedAtDrain = len(ts.flushed)
	}}

	done := make(chan struct{})
	var n int
	var resultErr error
	c := newFlushCompletion(done, &n, &resultErr)
	f := &ImageFlush{Ictx: ictx, C: c, Drainer: drainer}
	f.Send(context.Background())
	<-done

	require.NoError(t, resultErr)
	assert.True(t, drainCalled, "the drainer must run before the downstream flush is issued")
	assert.Zero(t, flushedAtDrain, "no object may be flushed before the drainer runs")
	assert.NotEmpty(t, ts.flushed, "the downstream flush must run once the drain is done")
}

func TestImageFlush_ClosedImageFails(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	require.NoError(t, ictx.Close())

	done := make(chan struct{})
	var n int
	var resultErr error
	c := newFlushCompletion(done, &n, &resultErr)
	f := &ImageFlush{Ictx: ictx, C: c}
	f.Send(context.Background())
	<-done

	assert.ErrorIs(t, resultErr, ioerr.ErrImageClosed)
}
