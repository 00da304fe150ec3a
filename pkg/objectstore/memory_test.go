// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Write(ctx, "obj1", 0, []byte("hello")))
	data, err := s.Read(ctx, "obj1", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMemory_ReadMissingObjectReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	data, err := s.Read(ctx, "nope", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMemory_WriteZeroExtendsGap(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Write(ctx, "obj1", 10, []byte("x")))
	data, err := s.Read(ctx, "obj1", 0, 11)
	require.NoError(t, err)
	assert.Equal(t, append(make([]byte, 10), 'x'), data)
}

func TestMemory_ReadPastEndIsShort(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Write(ctx, "obj1", 0, []byte("abc")))
	data, err := s.Read(ctx, "obj1", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "bc", string(data))
}

func TestMemory_DiscardWholeObjectRemoves(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Write(ctx, "obj1", 0, []byte("abcdef")))
	require.NoError(t, s.Discard(ctx, "obj1", 0, 6, true))

	_, exists, err := s.Stat(ctx, "obj1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemory_DiscardPartialZeroes(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Write(ctx, "obj1", 0, []byte("abcdef")))
	require.NoError(t, s.Discard(ctx, "obj1", 2, 2, false))

	data, err := s.Read(ctx, "obj1", 0, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 'e', 'f'}, data)
}

func TestMemory_StatReportsSize(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Write(ctx, "obj1", 0, []byte("abcdef")))

	size, exists, err := s.Stat(ctx, "obj1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, uint64(6), size)
}
