// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package striper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
)

const mib = 1 << 20

func TestToObjectExtents_SplitsAcrossTwoObjects(t *testing.T) {
	layout := image.DefaultLayout(4 * mib)
	extents := ToObjectExtents(layout, "rbd_data.img1", 3*mib, 2*mib, 0)

	require.Len(t, extents, 2)

	obj0 := extents[0]
	require.NotNil(t, obj0)
	assert.Equal(t, uint64(3*mib), obj0.ObjectOffset)
	assert.Equal(t, uint64(1*mib), obj0.Length)
	require.Len(t, obj0.BufferExtents, 1)
	assert.Equal(t, image.BufferExtent{BufferOffset: 0, Length: mib}, obj0.BufferExtents[0])

	obj1 := extents[1]
	require.NotNil(t, obj1)
	assert.Equal(t, uint64(0), obj1.ObjectOffset)
	assert.Equal(t, uint64(1*mib), obj1.Length)
	require.Len(t, obj1.BufferExtents, 1)
	assert.Equal(t, image.BufferExtent{BufferOffset: mib, Length: mib}, obj1.BufferExtents[0])
}

func TestToObjectExtents_SingleObjectWhenWithinBounds(t *testing.T) {
	layout := image.DefaultLayout(4 * mib)
	extents := ToObjectExtents(layout, "rbd_data.img1", 0, 4096, 0)

	require.Len(t, extents, 1)
	obj0 := extents[0]
	assert.Equal(t, uint64(0), obj0.ObjectOffset)
	assert.Equal(t, uint64(4096), obj0.Length)
}

func TestToObjectExtents_ZeroLengthProducesNothing(t *testing.T) {
	layout := image.DefaultLayout(4 * mib)
	extents := ToObjectExtents(layout, "rbd_data.img1", 10, 0, 0)
	assert.Empty(t, extents)
}

func TestAppendObjectExtents_AccumulatesAcrossCalls(t *testing.T) {
	layout := image.DefaultLayout(4 * mib)
	out := make(map[uint64]*image.ObjectExtent)

	AppendObjectExtents(out, layout, "rbd_data.img1", 0, 4096, 0)
	AppendObjectExtents(out, layout, "rbd_data.img1", 4*mib, 4096, 4096)

	require.Len(t, out, 2)
	assert.Equal(t, uint64(4096), out[0].Length)
	assert.Equal(t, uint64(4096), out[1].Length)
	assert.Equal(t, uint64(4096), out[1].BufferExtents[0].BufferOffset)
}

func TestToObjectExtents_StripedAcrossMultipleObjects(t *testing.T) {
	// stripe_unit=64KiB, stripe_count=4, object_size=256KiB: each object
	// holds 4 stripe units, one from every pass around the stripe_count
	// group of objects.
	layout := image.Layout{ObjectSize: 256 * 1024, StripeUnit: 64 * 1024, StripeCount: 4}

	// First stripe period (4 * 64KiB = 256KiB) touches objects 0..3 once each.
	extents := ToObjectExtents(layout, "rbd_data.img1", 0, 256*1024, 0)
	require.Len(t, extents, 4)
	for objno := uint64(0); objno < 4; objno++ {
		oe := extents[objno]
		require.NotNil(t, oe)
		assert.Equal(t, uint64(0), oe.ObjectOffset)
		assert.Equal(t, uint64(64*1024), oe.Length)
	}
}

func TestSortedObjectNumbers_OrdersByObjectNo(t *testing.T) {
	layout := image.DefaultLayout(4 * mib)
	extents := ToObjectExtents(layout, "rbd_data.img1", 3*mib, 2*mib, 0)

	keys := SortedObjectNumbers(extents)
	require.Len(t, keys, 2)
	assert.Equal(t, uint64(0), extents[keys[0]].ObjectNo)
	assert.Equal(t, uint64(1), extents[keys[1]].ObjectNo)
}
