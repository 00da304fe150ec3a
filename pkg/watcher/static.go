// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"sync/atomic"
)

// StaticWatcher is a single-process Watcher: ownership is a plain flag
// toggled on RequestLock/ReleaseLock, with no negotiation. It backs the
// CLI's --lock=static and --lock=none modes and tests that don't need a
// Raft cluster to exercise lock-deferral behavior.
type StaticWatcher struct {
	supported  bool
	owner      atomic.Bool
	opsPending atomic.Int64
}

// NewStaticWatcher creates a lock-supporting watcher that starts out
// owning the lock when startsOwner is true, matching a single-client
// image that never contends with peers, and unowned otherwise.
func NewStaticWatcher(startsOwner bool) *StaticWatcher {
	w := &StaticWatcher{supported: true}
	w.owner.Store(startsOwner)
	return w
}

// NewUnsupportedWatcher creates a watcher for an image with the
// advisory-lock feature disabled entirely: LockSupported always
// reports false, so the WQ never defers a write waiting on it.
func NewUnsupportedWatcher() *StaticWatcher {
	w := &StaticWatcher{supported: false}
	w.owner.Store(true)
	return w
}

func (w *StaticWatcher) LockSupported() bool {
	return w.supported
}

func (w *StaticWatcher) LockOwner() bool {
	return w.owner.Load()
}

func (w *StaticWatcher) RequestLock(ctx context.Context) error {
	w.owner.Store(true)
	return nil
}

func (w *StaticWatcher) ReleaseLock(ctx context.Context) error {
	w.owner.Store(false)
	return nil
}

func (w *StaticWatcher) FlagAIOOpsPending() {
	w.opsPending.Add(1)
}

func (w *StaticWatcher) ClearAIOOpsPending() {
	w.opsPending.Add(-1)
}

func (w *StaticWatcher) Close() error {
	return nil
}
