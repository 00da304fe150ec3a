// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package aio

import (
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
)

func TestCompletion_SingleChild_Success(t *testing.T) {
	var fired atomic.Bool
	c := New(OpWrite, func(c *Completion) { fired.Store(true) })
	c.SetExpectedLength(4096)

	require.NoError(t, c.AddRequest())
	c.FinishAddingRequests()
	assert.False(t, fired.Load(), "must not fire before the one child completes")

	c.CompleteRequest(0)
	assert.True(t, fired.Load())

	n, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
}

func TestCompletion_FiresExactlyOnce(t *testing.T) {
	var fireCount atomic.Int32
	c := New(OpWrite, func(c *Completion) { fireCount.Add(1) })

	for range 8 {
		require.NoError(t, c.AddRequest())
	}
	c.FinishAddingRequests()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CompleteRequest(0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fireCount.Load())
}

func TestCompletion_FirstNegativeWins(t *testing.T) {
	done := make(chan struct{})
	c := New(OpDiscard, func(c *Completion) { close(done) })

	require.NoError(t, c.AddRequest())
	require.NoError(t, c.AddRequest())
	require.NoError(t, c.AddRequest())
	c.FinishAddingRequests()

	c.CompleteRequest(0)
	c.CompleteRequest(-ioerr.ENOENT)
	c.CompleteRequest(-ioerr.EIO) // must not overwrite the first negative code

	<-done
	_, err := c.Result()
	assert.ErrorIs(t, err, ioerr.ErrNotFound)
}

func TestCompletion_NoChildrenFiresOnFinish(t *testing.T) {
	var fired atomic.Bool
	c := New(OpFlush, func(c *Completion) { fired.Store(true) })
	c.SetExpectedLength(0)

	c.FinishAddingRequests()
	assert.True(t, fired.Load())

	n, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCompletion_Fail_FiresInline(t *testing.T) {
	var calledOnCallerGoroutine bool
	c := New(OpWrite, func(c *Completion) { calledOnCallerGoroutine = true })
	c.Fail(-ioerr.EROFS)

	assert.True(t, calledOnCallerGoroutine)
	_, err := c.Result()
	assert.ErrorIs(t, err, ioerr.ErrReadOnly)
	assert.Equal(t, StateComplete, c.State())
}

func TestCompletion_AddRequestAfterComplete(t *testing.T) {
	c := New(OpWrite, func(c *Completion) {})
	c.Fail(-ioerr.EIO)

	err := c.AddRequest()
	assert.ErrorIs(t, err, ioerr.ErrImageClosed)
}

func TestCompletion_ReadSingleBuffer(t *testing.T) {
	done := make(chan struct{})
	c := New(OpRead, func(c *Completion) { close(done) })
	dst := make([]byte, 12)
	c.SetReadTarget(NewSingleBufferTarget(dst))
	c.SetExpectedLength(12)

	require.NoError(t, c.AddRequest())
	require.NoError(t, c.AddRequest())
	c.FinishAddingRequests()

	c.CompleteRead(0, []byte("hello "), 6)
	c.CompleteRead(6, []byte("world!"), 6)

	<-done
	n, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, "hello world!", string(dst))
}

func TestCompletion_ReadScatterTarget(t *testing.T) {
	done := make(chan struct{})
	c := New(OpRead, func(c *Completion) { close(done) })

	bufA := make([]byte, 4)
	bufB := make([]byte, 4)
	c.SetReadTarget(NewScatterTarget([]uint64{0, 4}, [][]byte{bufA, bufB}))

	require.NoError(t, c.AddRequest())
	c.FinishAddingRequests()

	// One child spans across the scatter boundary.
	c.CompleteRead(2, []byte("CDEF"), 4)

	<-done
	assert.Equal(t, "\x00\x00CD", string(bufA))
	assert.Equal(t, "EF\x00\x00", string(bufB))
}

func TestCompletion_RefcountTracksFanout(t *testing.T) {
	c := New(OpWrite, func(c *Completion) {})
	assert.Equal(t, int64(1), c.Refcount())

	c.Get()
	assert.Equal(t, int64(2), c.Refcount())

	c.Put()
	assert.Equal(t, int64(1), c.Refcount())
}

func TestCompletion_ConcurrentFanoutSynctest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var fireCount atomic.Int32
		c := New(OpDiscard, func(c *Completion) { fireCount.Add(1) })

		const children = 16
		for range children {
			require.NoError(t, c.AddRequest())
		}

		var wg sync.WaitGroup
		for i := range children {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c.CompleteRequest(0)
			}(i)
		}
		c.FinishAddingRequests()
		wg.Wait()
		synctest.Wait()

		assert.Equal(t, int32(1), fireCount.Load())
		assert.Equal(t, int64(0), c.Pending())
	})
}
