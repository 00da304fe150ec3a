// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeeDigitalWorks/imagepipe/pkg/cache"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/imagewq"
	"github.com/LeeDigitalWorks/imagepipe/pkg/journal"
	"github.com/LeeDigitalWorks/imagepipe/pkg/objectstore"
	"github.com/LeeDigitalWorks/imagepipe/pkg/watcher"
)

// pipeline bundles an opened image context with the work queue fronting
// it, so subcommands have one thing to tear down.
type pipeline struct {
	ictx *image.Ctx
	wq   *imagewq.WQ
}

// openPipeline builds an image.Ctx and imagewq.WQ from the current
// command's flags: backend selection, optional cache/journal/advisory
// lock, and admission-queue mode, matching the collaborators every
// imagerequest.Request already expects to find wired on the context.
func openPipeline(ctx context.Context, cmd *cobra.Command) (*pipeline, error) {
	f := NewFlagLoader(cmd)

	imageSize, err := f.Bytes("image-size")
	if err != nil {
		return nil, fmt.Errorf("imagepipe: image-size: %w", err)
	}
	objectSize, err := f.Bytes("object-size")
	if err != nil {
		return nil, fmt.Errorf("imagepipe: object-size: %w", err)
	}
	if objectSize == 0 {
		return nil, fmt.Errorf("imagepipe: object-size must be nonzero")
	}

	store, err := openStore(ctx, f)
	if err != nil {
		return nil, err
	}

	ictx := image.NewCtx(f.String("image-name"), "rbd_data."+f.String("image-name"), imageSize, image.DefaultLayout(objectSize))
	ictx.Store = store
	ictx.Config.NonBlockingAIO = f.Bool("nonblocking")

	if f.Bool("cache") {
		ictx.Cache = cache.NewShardedCache()
	}
	if f.Bool("journal") {
		j := journal.NewMemoryJournal(256)
		if err := j.Open(ctx); err != nil {
			return nil, fmt.Errorf("imagepipe: open journal: %w", err)
		}
		ictx.Journal = j
	}

	w, err := openWatcher(f)
	if err != nil {
		return nil, err
	}
	ictx.Watcher = w

	wq := imagewq.New(ictx)
	// Workers run regardless of NonBlockingAIO: a lock-required write
	// queues even in blocking mode, and only a running worker drains it.
	wq.Start(ctx, f.Int("concurrency"))

	return &pipeline{ictx: ictx, wq: wq}, nil
}

func openStore(ctx context.Context, f *FlagLoader) (objectstore.Store, error) {
	switch f.String("backend") {
	case "memory":
		return objectstore.NewMemory(), nil
	case "local":
		return objectstore.NewLocal(f.String("state-dir"))
	case "s3":
		return objectstore.NewS3(ctx, objectstore.S3Config{
			Bucket:    f.String("s3-bucket"),
			Region:    f.String("s3-region"),
			Endpoint:  f.String("s3-endpoint"),
			AccessKey: f.String("s3-access-key"),
			SecretKey: f.String("s3-secret-key"),
		})
	default:
		return nil, fmt.Errorf("imagepipe: unknown backend %q", f.String("backend"))
	}
}

func openWatcher(f *FlagLoader) (watcher.Watcher, error) {
	switch f.String("lock") {
	case "none":
		return watcher.NewUnsupportedWatcher(), nil
	case "static":
		return watcher.NewStaticWatcher(true), nil
	case "raft":
		return watcher.NewRaftWatcher(watcher.RaftConfig{
			NodeID:    f.String("raft-node-id"),
			BindAddr:  f.String("raft-bind"),
			DataDir:   f.String("state-dir") + "/raft",
			Bootstrap: true,
		})
	default:
		return nil, fmt.Errorf("imagepipe: unknown lock mode %q", f.String("lock"))
	}
}

// Close stops the work queue's workers (if any were started) and tears
// the image context down, releasing its collaborators.
func (p *pipeline) Close() error {
	p.wq.Stop()
	return p.ictx.Close()
}
