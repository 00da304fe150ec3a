// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package imagerequest implements the per-op dispatch engine: it maps
// one image-level read/write/discard/flush to object-level operations,
// interleaving journaling and caching as each variant requires.
package imagerequest

import (
	"context"

	"github.com/LeeDigitalWorks/imagepipe/pkg/aio"
	"github.com/LeeDigitalWorks/imagepipe/pkg/image"
	"github.com/LeeDigitalWorks/imagepipe/pkg/ioerr"
	"github.com/LeeDigitalWorks/imagepipe/pkg/logger"
)

// Request is the common entry point every variant implements. Send must
// be called with the image's owner lock held shared; ImageRequestWQ is
// responsible for that, not Request implementations themselves.
type Request interface {
	Send(ctx context.Context)
}

// sendWithCheck runs the three common steps of ImageRequest::send: it
// gets the completion for the duration of fan-out, validates the image
// context, and either fails fast or delegates to sendFn.
func sendWithCheck(ctx context.Context, ictx *image.Ctx, c *aio.Completion, sendFn func(ctx context.Context)) {
	c.Get()
	defer c.Put()

	if err := ictx.Check(); err != nil {
		logger.Ctx(ctx).Debug().Str("image", ictx.Name).Msg("imagerequest: failing on closed image context")
		c.Fail(ioerr.CodeFromError(err))
		return
	}

	sendFn(ctx)
}
