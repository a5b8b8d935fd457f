//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package retrieval implements semantic document retrieval: ranking corpus
// chunks against a query by embedding similarity, with a lexical fallback
// when embeddings are unavailable, and giving uploaded-document sessions
// precedence over the shared corpus.
package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-assistant-go/corpus"
	"trpc.group/trpc-go/trpc-assistant-go/document"
	"trpc.group/trpc-go/trpc-assistant-go/embedder"
	"trpc.group/trpc-go/trpc-assistant-go/log"
	"trpc.group/trpc-go/trpc-assistant-go/session"
	"trpc.group/trpc-go/trpc-assistant-go/similarity"
)

// ErrEmptyQuery is returned when the request query is missing or blank.
// It maps to a client error at the transport layer.
var ErrEmptyQuery = errors.New("query is required")

const (
	// DefaultTopK is the number of results returned when the request does
	// not say otherwise.
	DefaultTopK = 5
	// DefaultVectorThreshold is the minimum cosine similarity for a chunk
	// to count as relevant.
	DefaultVectorThreshold = 0.6
	// DefaultLexicalThreshold admits any chunk with nonzero term overlap.
	DefaultLexicalThreshold = 0.0
	// DefaultEmbedTimeout bounds the embedding provider call; on timeout
	// retrieval degrades to lexical scoring.
	DefaultEmbedTimeout = 10 * time.Second

	// parallelScoreMinChunks is the corpus size from which scoring is
	// spread over the worker pool.
	parallelScoreMinChunks = 256
)

// Source identifies which store produced the results.
type Source string

const (
	// SourceCorpus means the shared corpus was searched.
	SourceCorpus Source = "corpus"
	// SourceUploadedDocument means an uploaded-document session supplied
	// the result.
	SourceUploadedDocument Source = "uploaded-document"
	// SourceNone means there was nothing to search.
	SourceNone Source = "none"
)

// Strategy identifies how results were scored.
type Strategy string

const (
	// StrategyVector means chunks were ranked by embedding cosine similarity.
	StrategyVector Strategy = "vector"
	// StrategyLexical means chunks were ranked by literal term overlap.
	StrategyLexical Strategy = "lexical"
	// StrategyNone means no scoring took place.
	StrategyNone Strategy = "none"
)

// Request is a single retrieval call.
type Request struct {
	// Query is the natural-language query. Required.
	Query string

	// SessionID selects an uploaded-document session. When the session
	// exists it takes precedence over the corpus.
	SessionID string

	// CorpusID scopes corpus loading to a specific corpus. Optional.
	CorpusID string

	// TopK caps the number of results. Zero or negative means the
	// retriever default.
	TopK int

	// VectorThreshold overrides the retriever's cosine similarity cutoff.
	// Zero means the retriever default; a negative value lifts the cutoff
	// entirely so every embedded chunk is admitted.
	VectorThreshold float64

	// LexicalThreshold is the lexical score cutoff; results must score
	// strictly greater. The zero value admits any nonzero overlap.
	LexicalThreshold float64
}

// ScoredChunk is a chunk with its relevance score.
type ScoredChunk struct {
	Document *document.Document
	Score    float64
}

// Result is the outcome of one retrieval call. Source and Strategy tag the
// provenance so callers can tell degraded results from full-quality ones,
// and "searched and found nothing" (Source set, empty Results) from
// "nothing to search" (SourceNone).
type Result struct {
	Results  []*ScoredChunk
	Source   Source
	Strategy Strategy
}

// SearchType folds Source and Strategy into the single tag exposed on the
// wire: "vector", "lexical", "uploaded-document" or "none".
func (r *Result) SearchType() string {
	switch r.Source {
	case SourceUploadedDocument:
		return string(SourceUploadedDocument)
	case SourceNone:
		return string(SourceNone)
	default:
		return string(r.Strategy)
	}
}

// Retriever orchestrates session lookup, corpus loading, strategy
// selection and ranking.
type Retriever struct {
	embedder embedder.Embedder
	corpus   *corpus.Store
	sessions *session.Service

	topK             int
	vectorThreshold  float64
	lexicalThreshold float64
	embedTimeout     time.Duration
	scoreParallelism int
}

// Option represents a functional option for configuring the Retriever.
type Option func(*Retriever)

// WithEmbedder sets the embedding provider. Without one, retrieval always
// uses lexical scoring.
func WithEmbedder(e embedder.Embedder) Option {
	return func(r *Retriever) {
		r.embedder = e
	}
}

// WithCorpusStore sets the corpus store.
func WithCorpusStore(s *corpus.Store) Option {
	return func(r *Retriever) {
		r.corpus = s
	}
}

// WithSessionService sets the uploaded-document session service.
func WithSessionService(s *session.Service) Option {
	return func(r *Retriever) {
		r.sessions = s
	}
}

// WithTopK sets the default result cap.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithVectorThreshold sets the default cosine similarity cutoff.
func WithVectorThreshold(t float64) Option {
	return func(r *Retriever) {
		r.vectorThreshold = t
	}
}

// WithLexicalThreshold sets the default lexical score cutoff.
func WithLexicalThreshold(t float64) Option {
	return func(r *Retriever) {
		r.lexicalThreshold = t
	}
}

// WithEmbedTimeout bounds the embedding provider call.
func WithEmbedTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.embedTimeout = d
		}
	}
}

// WithScoringParallelism sets the worker pool size used to score large
// corpora. Zero or one keeps scoring sequential.
func WithScoringParallelism(n int) Option {
	return func(r *Retriever) {
		r.scoreParallelism = n
	}
}

// New creates a retriever with the given options.
func New(opts ...Option) *Retriever {
	r := &Retriever{
		topK:             DefaultTopK,
		vectorThreshold:  DefaultVectorThreshold,
		lexicalThreshold: DefaultLexicalThreshold,
		embedTimeout:     DefaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.corpus == nil {
		r.corpus = corpus.New()
	}
	return r
}

// Retrieve finds the most relevant chunks for the request. Embedding
// provider and corpus failures never surface as errors; retrieval degrades
// to lexical scoring or an empty tagged result instead.
func (r *Retriever) Retrieve(ctx context.Context, req *Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	// An active session always takes precedence over the corpus: the user
	// explicitly selected that document.
	if req.SessionID != "" && r.sessions != nil {
		if rec := r.sessions.Get(req.SessionID); rec != nil {
			return r.retrieveFromSession(ctx, req, rec), nil
		}
		// Unknown session falls through to corpus search.
		log.Debugf("session %s not found, searching corpus", req.SessionID)
	}

	docs := r.corpus.Load(ctx, req.CorpusID)
	if len(docs) == 0 {
		return &Result{Results: []*ScoredChunk{}, Source: SourceNone, Strategy: StrategyNone}, nil
	}

	// Vector search needs both an embedding-capable provider and at least
	// one embedded chunk; anything else is scored lexically.
	if hasEmbeddedChunks(docs) {
		if queryVec := r.embedQuery(ctx, req.Query); len(queryVec) > 0 {
			return r.vectorSearch(req, docs, queryVec), nil
		}
	}
	return r.lexicalSearch(req, docs), nil
}

// retrieveFromSession returns the session document as the single result.
// When both a record embedding and the provider are available the score is
// computed for provenance, but the document is returned regardless: it was
// explicitly chosen by the user.
func (r *Retriever) retrieveFromSession(ctx context.Context, req *Request, rec *session.Record) *Result {
	score := 0.0
	strategy := StrategyNone
	if len(rec.Embedding) > 0 {
		if queryVec := r.embedQuery(ctx, req.Query); len(queryVec) > 0 {
			score = similarity.Cosine(rec.Embedding, queryVec)
			strategy = StrategyVector
		}
	}

	doc := &document.Document{
		ID:      rec.ID,
		Title:   rec.FileName,
		Content: rec.Text,
	}
	return &Result{
		Results:  []*ScoredChunk{{Document: doc, Score: score}},
		Source:   SourceUploadedDocument,
		Strategy: strategy,
	}
}

// embedQuery asks the provider for a query embedding, bounded by the embed
// timeout. Any failure is logged and reported as "no embedding".
func (r *Retriever) embedQuery(ctx context.Context, query string) []float64 {
	if r.embedder == nil {
		return nil
	}
	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	vec, err := r.embedder.GetEmbedding(embedCtx, query)
	if err != nil {
		log.Warnf("query embedding failed, falling back to lexical scoring: %v", err)
		return nil
	}
	return vec
}

func (r *Retriever) vectorSearch(req *Request, docs []*document.Document, queryVec []float64) *Result {
	threshold := req.VectorThreshold
	switch {
	case threshold == 0:
		threshold = r.vectorThreshold
	case threshold < 0:
		threshold = math.Inf(-1)
	}

	// Chunks without embeddings are excluded from vector scoring rather
	// than scored as zero.
	embedded := make([]*document.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.HasEmbedding() {
			embedded = append(embedded, doc)
		}
	}

	scores := r.scoreAll(embedded, func(doc *document.Document) float64 {
		return similarity.Cosine(queryVec, doc.Embedding)
	})

	results := filterAndRank(embedded, scores, threshold, r.limit(req))
	return &Result{Results: results, Source: SourceCorpus, Strategy: StrategyVector}
}

func (r *Retriever) lexicalSearch(req *Request, docs []*document.Document) *Result {
	scores := r.scoreAll(docs, func(doc *document.Document) float64 {
		return similarity.Lexical(req.Query, doc.Title, doc.Content)
	})

	results := filterAndRank(docs, scores, req.LexicalThreshold, r.limit(req))
	return &Result{Results: results, Source: SourceCorpus, Strategy: StrategyLexical}
}

func (r *Retriever) limit(req *Request) int {
	if req.TopK > 0 {
		return req.TopK
	}
	return r.topK
}

// scoreAll computes a score per document, spreading the work over a worker
// pool for large corpora. The corpus stays a linear scan either way.
func (r *Retriever) scoreAll(docs []*document.Document, score func(*document.Document) float64) []float64 {
	scores := make([]float64, len(docs))
	if r.scoreParallelism <= 1 || len(docs) < parallelScoreMinChunks {
		for i, doc := range docs {
			scores[i] = score(doc)
		}
		return scores
	}

	pool, err := ants.NewPool(r.scoreParallelism)
	if err != nil {
		log.Warnf("failed to create scoring pool, scoring sequentially: %v", err)
		for i, doc := range docs {
			scores[i] = score(doc)
		}
		return scores
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		idx := i
		if err := pool.Submit(func() {
			defer wg.Done()
			scores[idx] = score(docs[idx])
		}); err != nil {
			scores[idx] = score(docs[idx])
			wg.Done()
		}
	}
	wg.Wait()
	return scores
}

// filterAndRank keeps chunks scoring strictly above the threshold, sorts
// them by score descending (ties keep corpus order) and truncates to limit.
func filterAndRank(docs []*document.Document, scores []float64, threshold float64, limit int) []*ScoredChunk {
	results := make([]*ScoredChunk, 0, len(docs))
	for i, doc := range docs {
		if scores[i] > threshold {
			results = append(results, &ScoredChunk{Document: doc, Score: scores[i]})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func hasEmbeddedChunks(docs []*document.Document) bool {
	for _, doc := range docs {
		if doc.HasEmbedding() {
			return true
		}
	}
	return false
}
