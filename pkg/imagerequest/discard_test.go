// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package imagerequest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
)

func sendDiscardAndWait(ictx *image.Ctx, offset, length uint64) (int, error) {
	done := make(chan struct{})
	var n int
	var err error
	c := aio.New(aio.OpDiscard, func(c *aio.Completion) {
		n, err = c.Result()
		close(done)
	})
	d := &ImageDiscard{Ictx: ictx, C: c, Offset: offset, Length: length}
	d.Send(context.Background())
	<-done
	return n, err
}

func TestImageDiscard_WholeObjectRemoves(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	require.NoError(t, ictx.Store.Write(context.Background(), oid, 0, make([]byte, 64)))

	_, err := sendDiscardAndWait(ictx, 0, 64)
	require.NoError(t, err)

	_, ok, err := ictx.Store.Stat(context.Background(), oid)
	require.NoError(t, err)
	assert.False(t, ok, "an exact whole-object discard must remove the object")
	assert.Equal(t, []string{oid}, ictx.DrainTouched())
}

func TestImageDiscard_TailTruncates(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	require.NoError(t, ictx.Store.Write(context.Background(), oid, 0, []byte("0123456789")))

	_, err := sendDiscardAndWait(ictx, 4, 6)
	require.NoError(t, err)

	sz, ok, err := ictx.Store.Stat(context.Background(), oid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4), sz, "end-aligned coverage must truncate rather than remove")
}

func TestImageDiscard_PartialZeroes(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	require.NoError(t, ictx.Store.Write(context.Background(), oid, 0, []byte("0123456789")))

	_, err := sendDiscardAndWait(ictx, 2, 3)
	require.NoError(t, err)

	got, err := ictx.Store.Read(context.Background(), oid, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "01\x00\x00\x0056789", string(got))
}

func TestImageDiscard_SkipPartialSkipsChild(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	ictx.Config.SkipPartialDiscard = true
	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	require.NoError(t, ictx.Store.Write(context.Background(), oid, 0, []byte("0123456789")))

	_, err := sendDiscardAndWait(ictx, 2, 3)
	require.NoError(t, err)

	got, err := ictx.Store.Read(context.Background(), oid, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got), "a skipped partial discard must leave the object untouched")
	assert.Empty(t, ictx.DrainTouched())
}

func TestImageDiscard_CacheBackedUsesCache(t *testing.T) {
	ictx := newTestCtx(1<<20, image.DefaultLayout(64))
	ictx.Cache = newTestCacheWithData(t, ictx, "0123456789")

	_, err := sendDiscardAndWait(ictx, 2, 3)
	require.NoError(t, err)

	oid := image.ObjectName(ictx.ObjectPrefix, 0)
	got, err := ictx.Cache.Read(context.Background(), oid, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "01\x00\x00\x0056789", string(got))
	assert.Empty(t, ictx.DrainTouched(), "a cache-backed discard must not mark the oid touched")
}
