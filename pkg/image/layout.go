// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package image holds the shared image context and geometry types that
// striper, imagerequest, and imagewq all operate against: the identity
// and layout of one logical block device backed by a set of objects.
package image

import "fmt"

// Layout describes how a flat image address space maps onto backing
// objects: object_size is the size of one backing object, and
// stripe_unit/stripe_count describe how consecutive stripe units are
// distributed round-robin across stripe_count objects before wrapping
// back to the first one. StripeUnit == ObjectSize and StripeCount == 1
// degenerates to plain per-object chunking.
type Layout struct {
	ObjectSize  uint64
	StripeUnit  uint64
	StripeCount uint64
}

// StripesPerObject is how many stripe units of this layout's StripeUnit
// fit in one backing object.
func (l Layout) StripesPerObject() uint64 {
	return l.ObjectSize / l.StripeUnit
}

// Validate reports whether the layout is self-consistent: object size
// must be an exact multiple of the stripe unit, and stripe count must be
// at least 1.
func (l Layout) Validate() error {
	if l.StripeUnit == 0 || l.ObjectSize == 0 {
		return fmt.Errorf("image: layout has zero stripe_unit or object_size")
	}
	if l.StripeCount == 0 {
		return fmt.Errorf("image: layout stripe_count must be >= 1")
	}
	if l.ObjectSize%l.StripeUnit != 0 {
		return fmt.Errorf("image: object_size must be a multiple of stripe_unit")
	}
	return nil
}

// DefaultLayout is the degenerate, single-stream layout used when an
// image does not configure explicit striping: each object is a
// contiguous chunk of the image address space.
func DefaultLayout(objectSize uint64) Layout {
	return Layout{ObjectSize: objectSize, StripeUnit: objectSize, StripeCount: 1}
}

// ObjectName formats the backing object name for object number objectno
// under prefix, matching this codebase's convention of a dotted
// numeric suffix rather than a opaque hash.
func ObjectName(prefix string, objectno uint64) string {
	return fmt.Sprintf("%s.%016x", prefix, objectno)
}
