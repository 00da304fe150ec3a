// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package striper is the pure mapping from an image-space (offset,
// length) extent to the set of object extents it touches, given an
// image's layout. It holds no state and talks to nothing: every other
// package consumes it by calling ToObjectExtents or AppendObjectExtents.
package striper

import (
	"sort"

	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
)

// ToObjectExtents splits [offset, offset+length) into per-object
// extents, each annotated with the buffer-offset slices needed to
// scatter/gather against the caller's logical buffer starting at
// bufferOfs. It returns a fresh map keyed by object number; callers
// striping several source extents into one read/write use
// AppendObjectExtents instead to keep accumulating into the same map
// across calls (passing bufferOfs advanced by each previous extent's
// clipped length).
func ToObjectExtents(layout image.Layout, objectPrefix string, offset, length, bufferOfs uint64) map[uint64]*image.ObjectExtent {
	out := make(map[uint64]*image.ObjectExtent)
	AppendObjectExtents(out, layout, objectPrefix, offset, length, bufferOfs)
	return out
}

// AppendObjectExtents is ToObjectExtents but accumulates into a
// caller-supplied map, the shape ImageRequest needs when striping
// multiple source extents into one object-extent map.
func AppendObjectExtents(out map[uint64]*image.ObjectExtent, layout image.Layout, objectPrefix string, offset, length, bufferOfs uint64) {
	if length == 0 {
		return
	}

	stripesPerObject := layout.StripesPerObject()
	cur := offset
	left := length
	bufOfs := bufferOfs

	for left > 0 {
		blockno := cur / layout.StripeUnit
		stripePosInObject := (blockno / layout.StripeCount) % stripesPerObject
		objectSetNo := blockno / (layout.StripeCount * stripesPerObject)
		stripeNumInSet := blockno % layout.StripeCount
		objectno := objectSetNo*layout.StripeCount + stripeNumInSet

		blockStart := cur % layout.StripeUnit
		maxInBlock := layout.StripeUnit - blockStart

		extentLen := left
		if maxInBlock < extentLen {
			extentLen = maxInBlock
		}

		objectOffset := stripePosInObject*layout.StripeUnit + blockStart

		oe, ok := out[objectno]
		if !ok {
			oe = &image.ObjectExtent{
				ObjectNo:   objectno,
				ObjectName: image.ObjectName(objectPrefix, objectno),
			}
			out[objectno] = oe
		}
		// A single object extent stays contiguous in object space:
		// if this block isn't adjacent to what's already accumulated
		// for this object, it becomes a new entry keyed by a synthetic
		// id so it doesn't corrupt the earlier extent's bounds. In
		// practice this only happens with stripe_count > 1, where the
		// same object is revisited once per full stripe period.
		if oe.Length > 0 && objectOffset != oe.ObjectOffset+oe.Length {
			oe = &image.ObjectExtent{
				ObjectNo:   objectno,
				ObjectName: image.ObjectName(objectPrefix, objectno),
			}
			out[disambiguate(out, objectno)] = oe
		}
		if oe.Length == 0 {
			oe.ObjectOffset = objectOffset
		}
		oe.Length += extentLen
		oe.BufferExtents = append(oe.BufferExtents, image.BufferExtent{
			BufferOffset: bufOfs,
			Length:       extentLen,
		})

		left -= extentLen
		cur += extentLen
		bufOfs += extentLen
	}
}

// disambiguate finds a synthetic key not yet present in out, for the
// rare revisited-object case noted above.
func disambiguate(out map[uint64]*image.ObjectExtent, objectno uint64) uint64 {
	key := objectno | (1 << 63)
	for {
		if _, exists := out[key]; !exists {
			return key
		}
		key++
	}
}

// SortedObjectNumbers returns the keys of an object-extent map in
// increasing object-number order, ignoring the high bit used to
// disambiguate revisited objects. Callers that need deterministic
// dispatch order (e.g. tests asserting child order) use this instead of
// map iteration.
func SortedObjectNumbers(extents map[uint64]*image.ObjectExtent) []uint64 {
	keys := make([]uint64, 0, len(extents))
	for k := range extents {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return extents[keys[i]].ObjectNo < extents[keys[j]].ObjectNo ||
			(extents[keys[i]].ObjectNo == extents[keys[j]].ObjectNo && keys[i] < keys[j])
	})
	return keys
}
