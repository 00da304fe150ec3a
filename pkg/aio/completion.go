// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package aio implements the completion aggregator that sits underneath
// every image-level request: it tracks pending object-level children,
// folds their result codes into one accumulated code, and fires a single
// terminal callback once fan-out has finished and every child is in.
package aio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
)

// OpKind identifies the image-level operation a completion was created for.
type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
	OpDiscard
	OpFlush
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDiscard:
		return "discard"
	case OpFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// State is the completion's lifecycle state.
type State int32

const (
	StatePending State = iota
	StateAddingRequestsDone
	StateComplete
)

// Completion is the aggregator described in the package doc. Exactly one
// of ReadTarget or nil is set depending on OpKind; all other bookkeeping is
// guarded by mu.
type Completion struct {
	ID   uuid.UUID
	Kind OpKind

	startedAt time.Time

	mu         sync.Mutex
	pending    int64
	retcode    int
	addingDone bool
	fired      bool
	state      State

	length    uint64 // clipped length of the whole op, set once before fan-out
	assembled uint64 // bytes actually copied into the read target

	readTarget *ReadTarget

	callback func(*Completion)

	refcount int64
}

// New creates a completion in state PENDING with zero pending children.
func New(kind OpKind, callback func(*Completion)) *Completion {
	return &Completion{
		ID:        uuid.New(),
		Kind:      kind,
		startedAt: time.Now(),
		callback:  callback,
		refcount:  1,
		state:     StatePending,
	}
}

// Get bumps the internal refcount. Every dispatching ImageRequest must Get
// the completion before fanning out and Put it after FinishAddingRequests.
func (c *Completion) Get() {
	atomic.AddInt64(&c.refcount, 1)
}

// Put decrements the internal refcount. This refcount is independent of
// the pending-child count: it exists so a completion outlives the request
// that created it for the duration of fan-out, mirroring the C++ original's
// ref-counted lifetime without requiring manual freeing in Go.
func (c *Completion) Put() {
	atomic.AddInt64(&c.refcount, -1)
}

// Refcount reports the current internal refcount, for tests.
func (c *Completion) Refcount() int64 {
	return atomic.LoadInt64(&c.refcount)
}

// SetExpectedLength records the clipped total length of the operation
// before any child is added, so Result() has something to report for
// non-read ops and so read accounting can be checked against it.
func (c *Completion) SetExpectedLength(n uint64) {
	c.mu.Lock()
	c.length = n
	c.mu.Unlock()
}

// SetReadTarget installs where completed read children should copy their
// bytes. Must be called before the first AddRequest, per the read
// invariant in the package this models.
func (c *Completion) SetReadTarget(rt *ReadTarget) {
	c.mu.Lock()
	c.readTarget = rt
	c.mu.Unlock()
}

// AddRequest registers one more pending child. Returns an error if the
// completion is no longer accepting children.
func (c *Completion) AddRequest() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePending {
		return ioerr.ErrImageClosed
	}
	c.pending++
	return nil
}

// CompleteRequest folds one child's result into the aggregate using
// first-negative-wins, decrements the pending count, and fires the
// terminal callback if this was the last pending child and
// FinishAddingRequests has already been called.
func (c *Completion) CompleteRequest(code int) {
	c.finishOne(code, nil, 0)
}

// CompleteRead is CompleteRequest for a read child: on success it copies
// data into the read target at bufferOffset before folding code into the
// aggregate, so the copy is visible to any reader once the terminal
// callback observes pending==0.
func (c *Completion) CompleteRead(bufferOffset uint64, data []byte, code int) {
	c.finishOne(code, data, bufferOffset)
}

func (c *Completion) finishOne(code int, data []byte, bufferOffset uint64) {
	c.mu.Lock()
	if code >= 0 && data != nil && c.readTarget != nil {
		c.readTarget.copyAt(bufferOffset, data)
		c.assembled += uint64(len(data))
	}
	if code < 0 && c.retcode >= 0 {
		c.retcode = code
	}
	c.pending--
	fire := c.shouldFireLocked()
	c.mu.Unlock()
	if fire {
		c.callback(c)
	}
}

// FinishAddingRequests closes the adding phase. If no children remain
// pending (either because none were ever added, or they all completed
// synchronously during fan-out), this fires the terminal callback itself.
func (c *Completion) FinishAddingRequests() {
	c.mu.Lock()
	c.addingDone = true
	fire := c.shouldFireLocked()
	c.mu.Unlock()
	if fire {
		c.callback(c)
	}
}

// Fail marks the completion failed without ever adding a child and fires
// the callback inline, synchronously, on the caller's goroutine. This is
// the one path where the callback does not run on a child's callback
// goroutine.
func (c *Completion) Fail(code int) {
	c.mu.Lock()
	if code < 0 {
		c.retcode = code
	}
	c.addingDone = true
	c.fired = true
	c.state = StateComplete
	c.mu.Unlock()
	c.callback(c)
}

// shouldFireLocked decides, under mu, whether this call is the one that
// transitions the completion to COMPLETE. Must be called with mu held.
func (c *Completion) shouldFireLocked() bool {
	if c.fired {
		return false
	}
	if !c.addingDone || c.pending != 0 {
		if c.addingDone {
			c.state = StateAddingRequestsDone
		}
		return false
	}
	c.fired = true
	c.state = StateComplete
	return true
}

// State returns the completion's current lifecycle state.
func (c *Completion) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result reports the outcome: for reads, the number of bytes assembled on
// success; for every other op kind, the clipped length of the request on
// success. On failure it is always (0, err).
func (c *Completion) Result() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retcode < 0 {
		return 0, ioerr.ErrorFromCode(c.retcode)
	}
	if c.Kind == OpRead {
		return int(c.assembled), nil
	}
	return int(c.length), nil
}

// Pending reports the current pending-child count, for tests.
func (c *Completion) Pending() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Elapsed is the time since the completion was created.
func (c *Completion) Elapsed() time.Duration {
	return time.Since(c.startedAt)
}
