// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package image

// ImageExtent is a (offset, length) pair over the flat image address
// space, as given by a caller before clipping against image size.
type ImageExtent struct {
	Offset uint64
	Length uint64
}

// BufferExtent is a back-mapping slice: it says that length bytes of an
// ObjectExtent correspond to the range [BufferOffset, BufferOffset+Length)
// of the caller's logical read/write buffer. A single ObjectExtent may
// carry several of these when it serves more than one source extent.
type BufferExtent struct {
	BufferOffset uint64
	Length       uint64
}

// ObjectExtent is produced by the striper: the target object, the range
// within it, and the back-mapping slices needed to scatter/gather
// against the caller's buffer.
type ObjectExtent struct {
	ObjectNo      uint64
	ObjectName    string
	ObjectOffset  uint64
	Length        uint64
	BufferExtents []BufferExtent
}
