// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal_OpenReachesReady(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(16)
	require.NoError(t, j.Open(ctx))
	assert.Equal(t, StateReady, j.State())
	require.NoError(t, j.Close(ctx))
	assert.Equal(t, StateClosed, j.State())
}

func TestMemoryJournal_AppendBeforeOpenFails(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(16)

	_, err := j.Append(ctx, EventWrite, 0, 10, []byte("x"), func(ctx context.Context, tid uint64) error { return nil })
	assert.Error(t, err)
}

func TestMemoryJournal_EntriesRunInTidOrder(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(16)
	require.NoError(t, j.Open(ctx))
	defer j.Close(ctx)

	var mu sync.Mutex
	var order []uint64

	const n = 20
	for i := range n {
		_, err := j.Append(ctx, EventWrite, uint64(i), 1, []byte{byte(i)}, func(ctx context.Context, tid uint64) error {
			mu.Lock()
			order = append(order, tid)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, j.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i, tid := range order {
		assert.Equal(t, uint64(i+1), tid)
	}
}

func TestMemoryJournal_WaitBlocksUntilCommit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		j := NewMemoryJournal(16)
		require.NoError(t, j.Open(ctx))
		defer j.Close(ctx)

		release := make(chan struct{})
		_, err := j.Append(ctx, EventFlush, 0, 0, nil, func(ctx context.Context, tid uint64) error {
			<-release
			return nil
		})
		require.NoError(t, err)

		waitDone := make(chan error, 1)
		go func() { waitDone <- j.Wait(ctx) }()

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		select {
		case <-waitDone:
			t.Fatal("Wait returned before the entry's fn released")
		default:
		}

		close(release)
		synctest.Wait()
		require.NoError(t, <-waitDone)
	})
}

func TestMemoryJournal_CommitPropagatesError(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(16)
	require.NoError(t, j.Open(ctx))
	defer j.Close(ctx)

	wantErr := fmt.Errorf("backend unavailable")
	_, err := j.Append(ctx, EventDiscard, 0, 10, nil, func(ctx context.Context, tid uint64) error {
		return wantErr
	})
	require.NoError(t, err)

	// Wait only guarantees ordering, not success; the caller's fn is
	// responsible for surfacing the error through its own channel.
	require.NoError(t, j.Wait(ctx))
}
