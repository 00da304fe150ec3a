// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher implements the advisory exclusive-lock collaborator
// ImageRequestWQ consults before admitting a write: ImageRequestWQ asks
// lock_owner() before dispatching a write and defers it if this image is
// not currently owned locally.
package watcher

import "context"

// Watcher reports and negotiates ownership of the advisory lock on an
// image. Acquisition is asynchronous by nature (a lock request only
// becomes visible once further LockOwner() calls reflect it), matching
// the upstream collaborator's own unspecified-completion semantics.
type Watcher interface {
	// LockSupported reports whether this image has the advisory-lock
	// feature enabled at all. A watcher that doesn't support locking
	// never makes a write wait on LockOwner.
	LockSupported() bool

	// LockOwner reports whether this process currently holds the lock.
	LockOwner() bool

	// RequestLock asks to become owner. It does not block until
	// ownership is granted; callers observe the grant through later
	// LockOwner() calls.
	RequestLock(ctx context.Context) error

	// ReleaseLock gives up ownership, if held.
	ReleaseLock(ctx context.Context) error

	// FlagAIOOpsPending tells the watcher there is outstanding mutating
	// work in flight, so it must not give up ownership underneath it.
	FlagAIOOpsPending()

	// ClearAIOOpsPending undoes FlagAIOOpsPending once the count of
	// outstanding writes drops back to zero.
	ClearAIOOpsPending()

	Close() error
}
