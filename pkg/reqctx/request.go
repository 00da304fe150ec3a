// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package reqctx attaches a correlation id to a context.Context so it can
// be threaded through a completion's fan-out and logged consistently.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

const Key = "imagepipe-request-id"

type requestIDKey struct{}

// WithUUID returns ctx annotated with a request id, generating one if ctx
// does not already carry one.
func WithUUID(ctx context.Context) (context.Context, string) {
	if id := ctx.Value(requestIDKey{}); id != nil {
		return ctx, id.(string)
	}
	newID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey{}, newID)
	return ctx, newID
}

// FromUUID attaches a known request id to ctx.
func FromUUID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, reqID)
}

// Get returns the request id carried by ctx, or "" if none.
func Get(ctx context.Context) string {
	if id := ctx.Value(requestIDKey{}); id != nil {
		return id.(string)
	}
	return ""
}
