//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a Gemini embedder implementation.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-assistant-go/embedder"
	"trpc.group/trpc-go/trpc-assistant-go/log"
)

// Verify that Embedder implements the embedder.Embedder interface.
var _ embedder.Embedder = (*Embedder)(nil)

const (
	// DefaultModel is the default Gemini embedding model.
	DefaultModel = "gemini-embedding-001"
	// DefaultDimensions is the default embedding dimension.
	DefaultDimensions = 1536
	// DefaultTaskType optimizes embeddings for search-style queries.
	DefaultTaskType = "RETRIEVAL_QUERY"

	// GoogleAPIKeyEnv is the environment variable name for the Google API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
)

// Embedder implements the embedder.Embedder interface for the Gemini API.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
	taskType   string
	apiKey     string
}

// Option represents a functional option for configuring the Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model to use.
func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

// WithDimensions sets the number of dimensions for the embedding.
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) {
		e.dimensions = dimensions
	}
}

// WithTaskType sets the task type to optimize embedding results.
func WithTaskType(taskType string) Option {
	return func(e *Embedder) {
		e.taskType = taskType
	}
}

// WithAPIKey sets the Google API key.
// If not provided, the GOOGLE_API_KEY environment variable is used.
func WithAPIKey(apiKey string) Option {
	return func(e *Embedder) {
		e.apiKey = apiKey
	}
}

// New creates a new Gemini embedder with the given options.
func New(ctx context.Context, opts ...Option) (*Embedder, error) {
	e := &Embedder{
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		taskType:   DefaultTaskType,
		apiKey:     os.Getenv(GoogleAPIKeyEnv),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not provided")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: e.apiKey})
	if err != nil {
		return nil, err
	}
	e.client = client
	return e, nil
}

// GetEmbedding implements the embedder.Embedder interface.
func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	model := strings.TrimPrefix(e.model, "models/")
	content := genai.NewContentFromText(text, genai.RoleUser)
	dims := int32(e.dimensions)
	request := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
		TaskType:             e.taskType,
	}

	response, err := e.client.Models.EmbedContent(ctx, model, []*genai.Content{content}, request)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0].Values) == 0 {
		log.Warn("received empty embedding response from Gemini API")
		return []float64{}, nil
	}

	embedding := make([]float64, len(response.Embeddings[0].Values))
	for i, v := range response.Embeddings[0].Values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

// GetDimensions implements the embedder.Embedder interface.
func (e *Embedder) GetDimensions() int {
	return e.dimensions
}
