// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package imagewq implements the per-image admission and dispatch queue
// sitting in front of imagerequest: every aio_* call either runs its
// request inline on the caller's goroutine or hands it to a small worker
// pool draining a FIFO, depending on the image's blocking mode, write
// suspension state, and advisory-lock posture.
package imagewq

import (
	"context"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/imagerequest"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
	"github.com/LeeDigitalWorks/imagepipe/pkg/reqctx"
)

// defaultLockPollInterval bounds how long a lock-required write sits
// blocked at the head of the queue before re-checking whether the
// watcher has reported ownership.
const defaultLockPollInterval = 20 * time.Millisecond

type queueItem struct {
	req          imagerequest.Request
	isWrite      bool
	lockRequired bool
}

// WQ is one image's admission queue. It owns no object-layer state of
// its own: everything it decides about admission and ordering is
// bookkeeping around imagerequest.Request.Send and the image context's
// own locks.
type WQ struct {
	ictx *image.Ctx

	mu               sync.Mutex
	cond             *sync.Cond
	queue            []*queueItem
	queuedWrites     int
	inProgressWrites int
	writesSuspended  bool
	closed           bool

	lockPollInterval time.Duration
	stopCh           chan struct{}
	wg               sync.WaitGroup
}

// New creates a WQ for ictx. It does not start any workers; call Start.
func New(ictx *image.Ctx) *WQ {
	wq := &WQ{
		ictx:             ictx,
		lockPollInterval: defaultLockPollInterval,
		stopCh:           make(chan struct{}),
	}
	wq.cond = sync.NewCond(&wq.mu)
	return wq
}

// Start launches concurrency worker goroutines draining the queue.
func (wq *WQ) Start(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		wq.wg.Add(1)
		go wq.worker(ctx)
	}
}

// Stop drains no further items, wakes every blocked worker, and waits
// for in-flight process() calls to return.
func (wq *WQ) Stop() {
	wq.mu.Lock()
	wq.closed = true
	wq.cond.Broadcast()
	wq.mu.Unlock()
	close(wq.stopCh)
	wq.wg.Wait()
}

func (wq *WQ) worker(ctx context.Context) {
	defer wq.wg.Done()
	for {
		item, ok := wq.dequeue()
		if !ok {
			return
		}
		wq.process(ctx, item)
	}
}

// dequeue is the head-peek admission check: a write at the head stays
// queued while writes are suspended or while it still needs the
// advisory lock, but later items never jump ahead of it.
func (wq *WQ) dequeue() (*queueItem, bool) {
	for {
		wq.mu.Lock()
		if wq.closed {
			wq.mu.Unlock()
			return nil, false
		}
		if len(wq.queue) == 0 {
			wq.cond.Wait()
			wq.mu.Unlock()
			continue
		}
		head := wq.queue[0]
		if head.isWrite && wq.writesSuspended {
			wq.cond.Wait()
			wq.mu.Unlock()
			continue
		}
		if head.isWrite && head.lockRequired && !wq.lockOwned() {
			wq.mu.Unlock()
			select {
			case <-time.After(wq.lockPollInterval):
			case <-wq.stopCh:
				return nil, false
			}
			continue
		}

		wq.queue = wq.queue[1:]
		if head.isWrite {
			wq.inProgressWrites++
		}
		wq.mu.Unlock()
		return head, true
	}
}

func (wq *WQ) lockOwned() bool {
	w := wq.ictx.Watcher
	return w == nil || w.LockOwner()
}

func (wq *WQ) lockRequired() bool {
	w := wq.ictx.Watcher
	return w != nil && w.LockSupported() && !w.LockOwner()
}

// process is the worker-thread body: acquire the owner lock for the
// duration of send, then update the WQ's own counters.
func (wq *WQ) process(ctx context.Context, item *queueItem) {
	ctx, reqID := reqctx.WithUUID(ctx)
	wq.ictx.OwnerLock.RLock()
	item.req.Send(ctx)
	wq.ictx.OwnerLock.RUnlock()

	if !item.isWrite {
		return
	}

	wq.mu.Lock()
	wq.queuedWrites--
	queuedZero := wq.queuedWrites == 0
	wq.inProgressWrites--
	wq.cond.Broadcast()
	wq.mu.Unlock()

	if queuedZero && wq.ictx.Watcher != nil {
		wq.ictx.Watcher.ClearAIOOpsPending()
	}
	logger.Ctx(ctx).Debug().Str("request_id", reqID).Msg("imagewq: processed request")
}

// dispatch is the inline-vs-queue decision shared by aio_write and
// aio_discard: both queue whenever non-blocking mode is configured or
// the advisory lock still needs to be acquired.
func (wq *WQ) dispatch(ctx context.Context, req imagerequest.Request, c *aio.Completion, isWrite, lockRequired bool) {
	if !wq.ictx.Config.NonBlockingAIO && !lockRequired {
		req.Send(ctx)
		return
	}
	wq.enqueue(ctx, c, &queueItem{req: req, isWrite: isWrite, lockRequired: lockRequired})
}

func (wq *WQ) enqueue(ctx context.Context, c *aio.Completion, item *queueItem) {
	wq.mu.Lock()
	if wq.closed {
		wq.mu.Unlock()
		c.Fail(ioerr.CodeFromError(ioerr.ErrQueueClosed))
		return
	}
	if item.isWrite {
		wq.queuedWrites++
		if wq.queuedWrites == 1 && wq.ictx.Watcher != nil {
			wq.ictx.Watcher.FlagAIOOpsPending()
			if item.lockRequired {
				if err := wq.ictx.Watcher.RequestLock(ctx); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Msg("imagewq: lock request failed")
				}
			}
		}
	}
	wq.queue = append(wq.queue, item)
	wq.cond.Broadcast()
	wq.mu.Unlock()
}

// AIORead admits a read, running inline unless non-blocking mode forces
// it through the queue.
func (wq *WQ) AIORead(ctx context.Context, c *aio.Completion, offset uint64, dst []byte, advice imagerequest.ReadAdvice) {
	req := imagerequest.NewImageRead(wq.ictx, c, offset, dst)
	req.Advice = advice
	wq.dispatch(ctx, req, c, false, false)
}

// AIOWrite admits a write, computing lock_required from the image's
// watcher before deciding whether it must queue.
func (wq *WQ) AIOWrite(ctx context.Context, c *aio.Completion, offset uint64, data []byte) {
	req := &imagerequest.ImageWrite{Ictx: wq.ictx, C: c, Offset: offset, Data: data}
	wq.dispatch(ctx, req, c, true, wq.lockRequired())
}

// AIODiscard admits a discard with the same lock-gating as AIOWrite.
func (wq *WQ) AIODiscard(ctx context.Context, c *aio.Completion, offset, length uint64) {
	req := &imagerequest.ImageDiscard{Ictx: wq.ictx, C: c, Offset: offset, Length: length}
	wq.dispatch(ctx, req, c, true, wq.lockRequired())
}

// AIOFlush admits a flush. It queues whenever non-blocking mode is set
// or writes are still queued ahead of it, so a flush never overtakes a
// write it was issued after.
func (wq *WQ) AIOFlush(ctx context.Context, c *aio.Completion) {
	req := &imagerequest.ImageFlush{Ictx: wq.ictx, C: c, Drainer: wq}

	wq.mu.Lock()
	writesEmpty := wq.queuedWrites == 0
	wq.mu.Unlock()

	if !wq.ictx.Config.NonBlockingAIO && writesEmpty {
		req.Send(ctx)
		return
	}
	wq.enqueue(ctx, c, &queueItem{req: req, isWrite: false})
}

// DrainThenNotify implements imagerequest.Drainer: it waits, off the
// caller's goroutine so Send returns immediately, until every write
// this WQ currently has in progress has returned from process().
func (wq *WQ) DrainThenNotify(ctx context.Context, done func()) {
	go func() {
		wq.mu.Lock()
		for wq.inProgressWrites != 0 {
			wq.cond.Wait()
		}
		wq.mu.Unlock()
		done()
	}()
}

// SuspendWrites marks the queue so no further write is dequeued, then
// blocks until every write already in process() has returned.
func (wq *WQ) SuspendWrites() {
	wq.mu.Lock()
	wq.writesSuspended = true
	for wq.inProgressWrites != 0 {
		wq.cond.Wait()
	}
	wq.mu.Unlock()
}

// ResumeWrites clears the suspension flag and wakes blocked workers so
// queued writes are re-examined.
func (wq *WQ) ResumeWrites() {
	wq.mu.Lock()
	wq.writesSuspended = false
	wq.cond.Broadcast()
	wq.mu.Unlock()
}

// QueuedWrites and InProgressWrites expose the WQ's counters for tests
// and metrics.
func (wq *WQ) QueuedWrites() int {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.queuedWrites
}

func (wq *WQ) InProgressWrites() int {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.inProgressWrites
}

// Read is the synchronous wrapper: it holds the owner lock only across
// admission, then blocks on the completion outside the lock so a
// queued dispatch isn't stuck behind its own caller.
func (wq *WQ) Read(ctx context.Context, offset uint64, dst []byte) (int, error) {
	return wq.syncOp(ctx, aio.OpRead, func(c *aio.Completion) {
		wq.AIORead(ctx, c, offset, dst, imagerequest.ReadAdviceNormal)
	})
}

func (wq *WQ) Write(ctx context.Context, offset uint64, data []byte) (int, error) {
	return wq.syncOp(ctx, aio.OpWrite, func(c *aio.Completion) {
		wq.AIOWrite(ctx, c, offset, data)
	})
}

func (wq *WQ) Discard(ctx context.Context, offset, length uint64) (int, error) {
	return wq.syncOp(ctx, aio.OpDiscard, func(c *aio.Completion) {
		wq.AIODiscard(ctx, c, offset, length)
	})
}

// Flush is the synchronous wrapper around AIOFlush.
func (wq *WQ) Flush(ctx context.Context) (int, error) {
	return wq.syncOp(ctx, aio.OpFlush, func(c *aio.Completion) {
		wq.AIOFlush(ctx, c)
	})
}

func (wq *WQ) syncOp(ctx context.Context, kind aio.OpKind, admit func(c *aio.Completion)) (int, error) {
	done := make(chan struct{})
	var n int
	var resultErr error
	c := aio.New(kind, func(c *aio.Completion) {
		n, resultErr = c.Result()
		close(done)
	})

	wq.ictx.OwnerLock.RLock()
	admit(c)
	wq.ictx.OwnerLock.RUnlock()

	<-done
	return n, resultErr
}
