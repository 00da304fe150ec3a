// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/objectstore"
)

func TestShardedCache_MissBeforePopulate(t *testing.T) {
	ctx := context.Background()
	c := NewShardedCache()

	_, err := c.Read(ctx, "obj1", 0, 10)
	assert.ErrorIs(t, err, ioerr.ErrCacheMiss)
}

func TestShardedCache_PopulateThenHit(t *testing.T) {
	ctx := context.Background()
	c := NewShardedCache()
	c.Populate("obj1", []byte("hello world"))

	data, err := c.Read(ctx, "obj1", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestShardedCache_WriteThenReadBack(t *testing.T) {
	ctx := context.Background()
	c := NewShardedCache()

	require.NoError(t, c.Write(ctx, "obj1", 0, []byte("abcdef")))
	data, err := c.Read(ctx, "obj1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "cd", string(data))
}

func TestShardedCache_FlushWritesDirtyRangesOnly(t *testing.T) {
	ctx := context.Background()
	c := NewShardedCache()
	store := objectstore.NewMemory()

	c.Populate("obj1", make([]byte, 16))
	require.NoError(t, c.Write(ctx, "obj1", 4, []byte("XXXX")))
	require.NoError(t, c.Flush(ctx, store, "obj1"))

	data, err := store.Read(ctx, "obj1", 0, 16)
	require.NoError(t, err)
	assert.Equal(t, "XXXX", string(data[4:8]))
	assert.Equal(t, make([]byte, 4), data[0:4])
}

func TestShardedCache_DiscardWholeObjectEvictsAndPropagates(t *testing.T) {
	ctx := context.Background()
	c := NewShardedCache()
	store := objectstore.NewMemory()

	require.NoError(t, store.Write(ctx, "obj1", 0, []byte("abcdef")))
	c.Populate("obj1", []byte("abcdef"))

	require.NoError(t, c.Discard(ctx, "obj1", 0, 6, true))
	_, err := c.Read(ctx, "obj1", 0, 1)
	assert.ErrorIs(t, err, ioerr.ErrCacheMiss)

	require.NoError(t, c.Flush(ctx, store, "obj1"))
	_, exists, err := store.Stat(ctx, "obj1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestShardedCache_InvalidateDropsEntry(t *testing.T) {
	c := NewShardedCache()
	c.Populate("obj1", []byte("x"))
	assert.Equal(t, 1, c.Len())

	c.Invalidate("obj1")
	assert.Equal(t, 0, c.Len())
}

func TestShardedCache_FlushAllCoversEveryEntry(t *testing.T) {
	ctx := context.Background()
	c := NewShardedCache()
	store := objectstore.NewMemory()

	require.NoError(t, c.Write(ctx, "a", 0, []byte("1")))
	require.NoError(t, c.Write(ctx, "b", 0, []byte("2")))
	require.NoError(t, c.FlushAll(ctx, store))

	da, err := store.Read(ctx, "a", 0, 1)
	require.NoError(t, err)
	db, err := store.Read(ctx, "b", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", string(da))
	assert.Equal(t, "2", string(db))
}
