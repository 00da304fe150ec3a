// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectstore implements the per-object backend that
// ImageRequestWQ's striped children ultimately read from and write to.
// An object is addressed by name only; callers are responsible for
// striping image-space extents into object-space ones before calling in.
package objectstore

import (
	"context"
)

// Store is the backend contract every object-store implementation
// satisfies. Read past end-of-object returns a short read with no error,
// matching sparse/thin-provisioned object semantics: a read of an object
// that was never written returns an empty result, and callers treat the
// missing bytes as zeros.
type Store interface {
	// Read reads length bytes starting at offset within the named
	// object into a freshly allocated buffer, which may be shorter than
	// length if the object is shorter.
	Read(ctx context.Context, oid string, offset, length uint64) ([]byte, error)

	// Write writes data at offset within the named object, creating the
	// object if it does not exist and zero-extending any gap before
	// offset.
	Write(ctx context.Context, oid string, offset uint64, data []byte) error

	// Discard punches a hole of length bytes starting at offset. If
	// wholeObject is true and the hole covers the entire current
	// object, the object is removed instead of leaving a zero-filled
	// stub, mirroring a full-object discard's effect on the backing
	// object.
	Discard(ctx context.Context, oid string, offset, length uint64, wholeObject bool) error

	// Remove deletes the object entirely, for an exact-object-size
	// discard where there is nothing left to keep.
	Remove(ctx context.Context, oid string) error

	// Truncate drops every byte at or beyond size, for a discard that
	// covers an object's tail. Local and Memory do this without touching
	// the dropped range; S3 rewrites the shortened object.
	Truncate(ctx context.Context, oid string, size uint64) error

	// Stat reports whether the object exists and its current size.
	Stat(ctx context.Context, oid string) (size uint64, exists bool, err error)

	// Flush is a durability barrier: it returns once every write/discard
	// to oid issued before the call has reached stable storage.
	Flush(ctx context.Context, oid string) error

	Close() error
}
