//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package corpus loads the static collection of retrievable text chunks
// from an ordered chain of candidate sources.
package corpus

import (
	"context"

	"trpc.group/trpc-go/trpc-assistant-go/document"
	"trpc.group/trpc-go/trpc-assistant-go/log"
)

// Provider supplies the chunks of a corpus from one backing source.
// Implementations answer for a specific location (a file on disk, an object
// in a bucket); returning an empty slice means the source cannot supply
// this corpus.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Load returns the chunks of the corpus identified by corpusID.
	// Providers that are not scoped per corpus ignore corpusID.
	Load(ctx context.Context, corpusID string) ([]*document.Document, error)
}

// Store tries an ordered list of providers and returns the first non-empty
// corpus. Loading never fails from the caller's perspective: an unreachable
// or unparsable source is logged and the next provider is tried, and a fully
// unavailable corpus yields an empty slice.
type Store struct {
	providers []Provider
}

// Option represents a functional option for configuring the Store.
type Option func(*Store)

// WithProviders appends providers to the chain, in priority order.
func WithProviders(providers ...Provider) Option {
	return func(s *Store) {
		s.providers = append(s.providers, providers...)
	}
}

// New creates a corpus store with the given options.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the chunks of the corpus, or an empty slice when no provider
// can supply it. Chunks whose trimmed text is empty are dropped by the
// providers at parse time.
func (s *Store) Load(ctx context.Context, corpusID string) []*document.Document {
	for _, p := range s.providers {
		docs, err := p.Load(ctx, corpusID)
		if err != nil {
			log.Warnf("corpus provider %s failed: %v", p.Name(), err)
			continue
		}
		if len(docs) == 0 {
			continue
		}
		log.Debugf("corpus loaded from provider %s: %d chunks", p.Name(), len(docs))
		return docs
	}
	return nil
}
