// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal implements the ordered event log that sits ahead of
// object dispatch: every write, discard, and flush is appended here
// first, and the caller-supplied commit function for each entry only
// runs once every entry ahead of it in tid order has itself committed.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

// EventKind identifies what kind of op an Event records.
type EventKind int

const (
	EventWrite EventKind = iota
	EventDiscard
	EventFlush
)

func (k EventKind) String() string {
	switch k {
	case EventWrite:
		return "write"
	case EventDiscard:
		return "discard"
	case EventFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// Event is one ordered entry in the log.
type Event struct {
	Tid    uint64
	Kind   EventKind
	Offset uint64
	Length uint64
	Data   []byte // only set for EventWrite
}

// State is the journal's lifecycle state, following the same
// uninitialized-through-closed progression a replicated log goes
// through while it catches up to the tail before accepting new writes.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReplaying
	StateRestartingReplay
	StateReady
	StateStopping
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReplaying:
		return "replaying"
	case StateRestartingReplay:
		return "restarting_replay"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned by a State transition that is not one
// of the legal edges in the journal's state machine.
var ErrInvalidTransition = errors.New("journal: invalid state transition")

var legalTransitions = map[State][]State{
	StateUninitialized:    {StateInitializing},
	StateInitializing:     {StateReplaying, StateReady, StateClosing},
	StateReplaying:        {StateRestartingReplay, StateReady, StateClosing},
	StateRestartingReplay: {StateReplaying, StateClosing},
	StateReady:            {StateStopping, StateClosing},
	StateStopping:         {StateClosing},
	StateClosing:          {StateClosed},
}

// transition validates and applies from -> to, returning ErrInvalidTransition
// if the edge does not exist in the state machine.
func transition(from, to State) error {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ChildRequestFunc is the work a caller wants run once an appended
// entry's turn comes up in commit order. It receives the assigned tid so
// it can be matched back to the entry that triggered it.
type ChildRequestFunc func(ctx context.Context, tid uint64) error

// Journal is the collaborator ImageRequest appends to before dispatching
// to the object store. Each entry's fn carries that entry's object-level
// work, and Commit marks the entry finished once its fn has returned.
type Journal interface {
	// Open transitions the journal from UNINITIALIZED to READY,
	// replaying any backlog first.
	Open(ctx context.Context) error

	// State reports the current lifecycle state.
	State() State

	// Append records an event and schedules fn to run once every event
	// ahead of it has committed. fn runs on the journal's own dispatch
	// goroutine, never on the caller's.
	Append(ctx context.Context, kind EventKind, offset, length uint64, data []byte, fn ChildRequestFunc) (tid uint64, err error)

	// Commit reports that the object-layer work for tid has finished
	// with the given error, releasing the dispatcher to run the next
	// entry's fn.
	Commit(tid uint64, err error)

	// Wait blocks until every appended entry up to and including the
	// most recently appended tid has committed.
	Wait(ctx context.Context) error

	// Close transitions through STOPPING and CLOSING to CLOSED, first
	// waiting for every appended entry to commit.
	Close(ctx context.Context) error
}

type pendingEntry struct {
	event Event
	fn    ChildRequestFunc
	done  chan struct{}
	err   error
}

// MemoryJournal is an in-process Journal: entries are queued on a
// buffered channel, and a single dispatcher goroutine drains them strictly in tid order,
// following the same poll-and-dispatch shape as this codebase's task
// worker, but with a channel instead of a timer since entries are always
// ready to run the instant their turn arrives.
type MemoryJournal struct {
	mu       sync.Mutex
	state    State
	nextTid  uint64
	entries  chan *pendingEntry
	lastTid  uint64
	commitCh map[uint64]chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMemoryJournal creates a journal with the given dispatch queue depth.
func NewMemoryJournal(queueDepth int) *MemoryJournal {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	return &MemoryJournal{
		state:    StateUninitialized,
		entries:  make(chan *pendingEntry, queueDepth),
		commitCh: make(map[uint64]chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

func (j *MemoryJournal) Open(ctx context.Context) error {
	j.mu.Lock()
	if err := transition(j.state, StateInitializing); err != nil {
		j.mu.Unlock()
		return err
	}
	j.state = StateInitializing
	j.mu.Unlock()

	// No backlog to replay for a fresh in-memory journal; a durable
	// implementation would walk its log here before flipping to READY.
	j.mu.Lock()
	_ = transition(j.state, StateReady)
	j.state = StateReady
	j.mu.Unlock()

	j.wg.Add(1)
	go j.dispatch()

	logger.Info().Msg("journal: opened")
	return nil
}

func (j *MemoryJournal) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *MemoryJournal) Append(ctx context.Context, kind EventKind, offset, length uint64, data []byte, fn ChildRequestFunc) (uint64, error) {
	j.mu.Lock()
	if j.state != StateReady {
		j.mu.Unlock()
		return 0, fmt.Errorf("journal: append while %s", j.state)
	}
	j.nextTid++
	tid := j.nextTid
	j.lastTid = tid
	done := make(chan struct{})
	j.commitCh[tid] = done
	j.mu.Unlock()

	pe := &pendingEntry{
		event: Event{Tid: tid, Kind: kind, Offset: offset, Length: length, Data: data},
		fn:    fn,
		done:  done,
	}

	select {
	case j.entries <- pe:
		return tid, nil
	case <-ctx.Done():
		j.mu.Lock()
		delete(j.commitCh, tid)
		j.mu.Unlock()
		return 0, ctx.Err()
	case <-j.stopCh:
		return 0, fmt.Errorf("journal: closed")
	}
}

func (j *MemoryJournal) Commit(tid uint64, err error) {
	j.mu.Lock()
	done, ok := j.commitCh[tid]
	if ok {
		delete(j.commitCh, tid)
	}
	j.mu.Unlock()
	if ok {
		close(done)
	}
	if err != nil {
		logger.Warn().Err(err).Uint64("tid", tid).Msg("journal: entry committed with error")
	}
}

func (j *MemoryJournal) Wait(ctx context.Context) error {
	j.mu.Lock()
	tid := j.lastTid
	done, ok := j.commitCh[tid]
	j.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *MemoryJournal) dispatch() {
	defer j.wg.Done()
	for {
		select {
		case pe := <-j.entries:
			j.runEntry(pe)
		case <-j.stopCh:
			return
		}
	}
}

func (j *MemoryJournal) runEntry(pe *pendingEntry) {
	err := pe.fn(context.Background(), pe.event.Tid)
	j.Commit(pe.event.Tid, err)
}

func (j *MemoryJournal) Close(ctx context.Context) error {
	j.mu.Lock()
	if err := transition(j.state, StateStopping); err != nil {
		j.mu.Unlock()
		return err
	}
	j.state = StateStopping
	j.mu.Unlock()

	if err := j.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("journal: close wait interrupted")
	}

	j.mu.Lock()
	_ = transition(j.state, StateClosing)
	j.state = StateClosing
	j.mu.Unlock()

	close(j.stopCh)
	j.wg.Wait()

	j.mu.Lock()
	_ = transition(j.state, StateClosed)
	j.state = StateClosed
	j.mu.Unlock()

	logger.Info().Msg("journal: closed")
	return nil
}
