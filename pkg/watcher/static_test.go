// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticWatcher_StartsOwnerWhenConfigured(t *testing.T) {
	w := NewStaticWatcher(true)
	assert.True(t, w.LockOwner())
}

func TestStaticWatcher_ReleaseThenRequest(t *testing.T) {
	ctx := context.Background()
	w := NewStaticWatcher(true)

	require.NoError(t, w.ReleaseLock(ctx))
	assert.False(t, w.LockOwner())

	require.NoError(t, w.RequestLock(ctx))
	assert.True(t, w.LockOwner())
}

func TestStaticWatcher_StartsUnownedWhenConfigured(t *testing.T) {
	w := NewStaticWatcher(false)
	assert.False(t, w.LockOwner())
}

func TestStaticWatcher_LockSupported(t *testing.T) {
	assert.True(t, NewStaticWatcher(true).LockSupported())
	assert.False(t, NewUnsupportedWatcher().LockSupported())
}

func TestStaticWatcher_AIOOpsPendingRoundTrips(t *testing.T) {
	w := NewStaticWatcher(true)
	w.FlagAIOOpsPending()
	w.FlagAIOOpsPending()
	w.ClearAIOOpsPending()
	assert.Equal(t, int64(1), w.opsPending.Load())
	w.ClearAIOOpsPending()
	assert.Equal(t, int64(0), w.opsPending.Load())
}
