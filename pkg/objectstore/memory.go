// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store backed by a map of byte slices, used by
// tests and by the CLI's --backend=memory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Read(ctx context.Context, oid string, offset, length uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ObjectReadsTotal.Inc()

	obj, ok := m.objects[oid]
	if !ok || offset >= uint64(len(obj)) {
		return nil, nil
	}
	end := offset + length
	if end > uint64(len(obj)) {
		end = uint64(len(obj))
	}
	out := make([]byte, end-offset)
	copy(out, obj[offset:end])
	return out, nil
}

func (m *Memory) Write(ctx context.Context, oid string, offset uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ObjectWritesTotal.Inc()
	ObjectBytesWritten.Add(float64(len(data)))

	obj := m.objects[oid]
	need := offset + uint64(len(data))
	if uint64(len(obj)) < need {
		grown := make([]byte, need)
		copy(grown, obj)
		obj = grown
	}
	copy(obj[offset:], data)
	m.objects[oid] = obj
	return nil
}

func (m *Memory) Discard(ctx context.Context, oid string, offset, length uint64, wholeObject bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ObjectDiscardsTotal.Inc()

	obj, ok := m.objects[oid]
	if !ok {
		return nil
	}
	if wholeObject && offset == 0 && length >= uint64(len(obj)) {
		delete(m.objects, oid)
		return nil
	}
	end := offset + length
	if end > uint64(len(obj)) {
		end = uint64(len(obj))
	}
	if offset < end {
		for i := offset; i < end; i++ {
			obj[i] = 0
		}
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, oid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, oid)
	return nil
}

func (m *Memory) Truncate(ctx context.Context, oid string, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[oid]
	if !ok {
		return nil
	}
	if uint64(len(obj)) > size {
		m.objects[oid] = obj[:size]
	}
	return nil
}

func (m *Memory) Stat(ctx context.Context, oid string) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[oid]
	return uint64(len(obj)), ok, nil
}

func (m *Memory) Flush(ctx context.Context, oid string) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
