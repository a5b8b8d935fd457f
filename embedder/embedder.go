//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides interfaces and implementations for text embedding.
package embedder

import (
	"context"
)

// Embedder is the interface that all embedding providers must implement.
//
// Callers must tolerate failure: an embedder may be unreachable (missing
// credentials, network trouble, timeout), and retrieval degrades to lexical
// scoring in that case instead of surfacing the error.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	// An error indicates the provider could not be reached or rejected the
	// request; an empty slice indicates an API-level failure after a
	// successful call.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of the embeddings produced by
	// this embedder. Returns 0 if dimensions are not known or configurable.
	GetDimensions() int
}
