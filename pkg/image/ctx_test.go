// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
)

func TestCtx_ClipWithinSize(t *testing.T) {
	c := NewCtx("img1", "rbd_data.img1", 1<<20, DefaultLayout(4<<20))
	n, err := c.Clip(100, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), n)
}

func TestCtx_ClipAtOrBeyondSizeIsNoop(t *testing.T) {
	c := NewCtx("img1", "rbd_data.img1", 1<<20, DefaultLayout(4<<20))

	n, err := c.Clip(1<<20, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	n, err = c.Clip(1<<21, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestCtx_ClipTruncatesAtEOF(t *testing.T) {
	c := NewCtx("img1", "rbd_data.img1", 1000, DefaultLayout(4<<20))
	n, err := c.Clip(900, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), n)
}

func TestCtx_ClipOverflowIsInvalid(t *testing.T) {
	c := NewCtx("img1", "rbd_data.img1", 1000, DefaultLayout(4<<20))
	_, err := c.Clip(^uint64(0)-10, 100)
	assert.ErrorIs(t, err, ioerr.ErrInvalidExtent)
}

func TestCtx_CheckFailsAfterClose(t *testing.T) {
	c := NewCtx("img1", "rbd_data.img1", 1000, DefaultLayout(4<<20))
	require.NoError(t, c.Check())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Check(), ioerr.ErrImageClosed)
	assert.True(t, c.Closed())
}

func TestCtx_CloseIsIdempotent(t *testing.T) {
	c := NewCtx("img1", "rbd_data.img1", 1000, DefaultLayout(4<<20))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
