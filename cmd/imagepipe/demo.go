// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// writeDemoResult is one synthetic write's outcome, collected after the
// queue drains so the caller can report total bytes moved.
type writeDemoResult struct {
	index int
	n     int
	err   error
}

// runSuspendResumeDemo exercises the full write-suspension lifecycle
// against a single open image: it suspends the queue first so every
// synthetic write it issues sits at the head blocked on writesSuspended,
// reports that held state, resumes the queue, and waits for every write
// to drain. A single process is the only thing that can observe both
// halves of this cycle, since suspension state lives on the in-memory
// work queue and does not survive past the command that set it.
func runSuspendResumeDemo(ctx context.Context, p *pipeline, count int, size uint64, reportSuspended bool) error {
	// Suspension only has an observable effect on writes admitted through
	// the queue, so the demo always runs in non-blocking mode regardless
	// of how --nonblocking was set when the pipeline was opened.
	p.ictx.Config.NonBlockingAIO = true
	p.wq.SuspendWrites()

	data := make([]byte, size)
	results := make([]writeDemoResult, count)
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := uint64(i) * size
			n, err := p.wq.Write(ctx, offset, data)
			results[i] = writeDemoResult{index: i, n: n, err: err}
		}(i)
	}

	// Give the dispatch goroutines a moment to reach the queue before
	// taking the "while suspended" snapshot.
	time.Sleep(10 * time.Millisecond)

	if reportSuspended {
		fmt.Printf("writes suspended: queued=%d in_progress=%d\n", p.wq.QueuedWrites(), p.wq.InProgressWrites())
	}

	p.wq.ResumeWrites()
	wg.Wait()

	var total uint64
	for _, r := range results {
		if r.err != nil {
			return fmt.Errorf("imagepipe: demo write %d: %w", r.index, r.err)
		}
		total += uint64(r.n)
	}
	fmt.Printf("resumed: %d writes drained, %s written\n", count, humanize.Bytes(total))
	return nil
}
