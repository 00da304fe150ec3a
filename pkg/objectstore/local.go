// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Local is a Store backed by one regular file per object underneath a
// root directory; a write past the current end leaves a sparse,
// zero-reading gap.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: mkdir %s: %w", dir, err)
	}
	return &Local{root: dir}, nil
}

func (l *Local) path(oid string) string {
	return filepath.Join(l.root, oid)
}

func (l *Local) Read(ctx context.Context, oid string, offset, length uint64) ([]byte, error) {
	start := time.Now()
	defer func() { BackendLatencySeconds.WithLabelValues("local", "read").Observe(time.Since(start).Seconds()) }()
	ObjectReadsTotal.Inc()

	f, err := os.Open(l.path(oid))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", oid, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("objectstore: read %s: %w", oid, err)
	}
	return buf[:n], nil
}

func (l *Local) Write(ctx context.Context, oid string, offset uint64, data []byte) error {
	start := time.Now()
	defer func() { BackendLatencySeconds.WithLabelValues("local", "write").Observe(time.Since(start).Seconds()) }()
	ObjectWritesTotal.Inc()
	ObjectBytesWritten.Add(float64(len(data)))

	f, err := os.OpenFile(l.path(oid), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", oid, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("objectstore: write %s: %w", oid, err)
	}
	return nil
}

func (l *Local) Discard(ctx context.Context, oid string, offset, length uint64, wholeObject bool) error {
	ObjectDiscardsTotal.Inc()

	fi, err := os.Stat(l.path(oid))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("objectstore: stat %s: %w", oid, err)
	}

	if wholeObject && offset == 0 && length >= uint64(fi.Size()) {
		if err := os.Remove(l.path(oid)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("objectstore: remove %s: %w", oid, err)
		}
		return nil
	}

	f, err := os.OpenFile(l.path(oid), os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", oid, err)
	}
	defer f.Close()

	end := offset + length
	if end > uint64(fi.Size()) {
		end = uint64(fi.Size())
	}
	if offset >= end {
		return nil
	}
	zeros := make([]byte, end-offset)
	if _, err := f.WriteAt(zeros, int64(offset)); err != nil {
		return fmt.Errorf("objectstore: punch hole %s: %w", oid, err)
	}
	return nil
}

func (l *Local) Remove(ctx context.Context, oid string) error {
	if err := os.Remove(l.path(oid)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: remove %s: %w", oid, err)
	}
	return nil
}

func (l *Local) Truncate(ctx context.Context, oid string, size uint64) error {
	if err := os.Truncate(l.path(oid), int64(size)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: truncate %s: %w", oid, err)
	}
	return nil
}

func (l *Local) Stat(ctx context.Context, oid string) (uint64, bool, error) {
	fi, err := os.Stat(l.path(oid))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("objectstore: stat %s: %w", oid, err)
	}
	return uint64(fi.Size()), true, nil
}

func (l *Local) Flush(ctx context.Context, oid string) error {
	f, err := os.OpenFile(l.path(oid), os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", oid, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("objectstore: sync %s: %w", oid, err)
	}
	return nil
}

func (l *Local) Close() error {
	return nil
}
