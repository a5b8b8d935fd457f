//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-assistant-go/corpus"
	"trpc.group/trpc-go/trpc-assistant-go/document"
	"trpc.group/trpc-go/trpc-assistant-go/session"
)

// stubEmbedder returns a fixed vector or error for every call.
type stubEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (s *stubEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) GetDimensions() int { return len(s.vec) }

type stubProvider struct {
	docs []*document.Document
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Load(ctx context.Context, corpusID string) ([]*document.Document, error) {
	return s.docs, nil
}

func corpusOf(docs ...*document.Document) *corpus.Store {
	return corpus.New(corpus.WithProviders(&stubProvider{docs: docs}))
}

func embeddedCorpus() *corpus.Store {
	return corpusOf(
		&document.Document{ID: "1", Title: "one", Content: "chunk one", Embedding: []float64{1, 0}},
		&document.Document{ID: "2", Title: "two", Content: "chunk two", Embedding: []float64{0, 1}},
		&document.Document{ID: "3", Title: "three", Content: "chunk three", Embedding: []float64{0.9, 0.1}},
	)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	r := New()
	_, err := r.Retrieve(context.Background(), &Request{Query: "   "})
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetrieve_EmptyCorpusNoSession(t *testing.T) {
	r := New(WithCorpusStore(corpus.New()))
	res, err := r.Retrieve(context.Background(), &Request{Query: "battery"})
	require.NoError(t, err)
	assert.Equal(t, SourceNone, res.Source)
	assert.Equal(t, "none", res.SearchType())
	assert.Empty(t, res.Results)
}

func TestRetrieve_VectorRanking(t *testing.T) {
	emb := &stubEmbedder{vec: []float64{1, 0}}
	r := New(WithEmbedder(emb), WithCorpusStore(embeddedCorpus()))

	res, err := r.Retrieve(context.Background(), &Request{
		Query:           "chunk",
		TopK:            2,
		VectorThreshold: 0.6,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceCorpus, res.Source)
	assert.Equal(t, StrategyVector, res.Strategy)
	assert.Equal(t, "vector", res.SearchType())

	// chunk1 scores 1.0, chunk3 scores ~0.994, chunk2 scores 0 and is cut.
	require.Len(t, res.Results, 2)
	assert.Equal(t, "1", res.Results[0].Document.ID)
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-9)
	assert.Equal(t, "3", res.Results[1].Document.ID)
	assert.InDelta(t, 0.9/math.Sqrt(0.82), res.Results[1].Score, 1e-9)
}

func TestRetrieve_NegativeThresholdAdmitsAll(t *testing.T) {
	emb := &stubEmbedder{vec: []float64{1, 0}}
	r := New(WithEmbedder(emb), WithCorpusStore(embeddedCorpus()))

	res, err := r.Retrieve(context.Background(), &Request{
		Query:           "chunk",
		VectorThreshold: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyVector, res.Strategy)
	// The orthogonal chunk scores 0 and is still admitted.
	require.Len(t, res.Results, 3)
	assert.Equal(t, "2", res.Results[2].Document.ID)
	assert.InDelta(t, 0.0, res.Results[2].Score, 1e-9)
}

func TestRetrieve_EmbedderFailureFallsBackToLexical(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("no credentials")}
	store := corpusOf(
		&document.Document{ID: "1", Title: "Battery System", Content: "The battery charges fast.", Embedding: []float64{1, 0}},
		&document.Document{ID: "2", Title: "Lighting", Content: "Ambient lighting options."},
	)
	r := New(WithEmbedder(emb), WithCorpusStore(store))

	res, err := r.Retrieve(context.Background(), &Request{Query: "battery"})
	require.NoError(t, err)
	assert.Equal(t, StrategyLexical, res.Strategy)
	assert.Equal(t, "lexical", res.SearchType())
	require.Len(t, res.Results, 1)
	assert.Equal(t, "1", res.Results[0].Document.ID)
	// 3 title points + 1 body occurrence.
	assert.Equal(t, 4.0, res.Results[0].Score)
}

func TestRetrieve_NoEmbeddedChunksSkipsProvider(t *testing.T) {
	emb := &stubEmbedder{vec: []float64{1, 0}}
	store := corpusOf(
		&document.Document{ID: "1", Title: "Range", Content: "530 km range."},
	)
	r := New(WithEmbedder(emb), WithCorpusStore(store))

	res, err := r.Retrieve(context.Background(), &Request{Query: "range"})
	require.NoError(t, err)
	assert.Equal(t, StrategyLexical, res.Strategy)
	assert.Zero(t, emb.calls, "provider should not be called without embedded chunks")
}

func TestRetrieve_NoEmbedderUsesLexical(t *testing.T) {
	r := New(WithCorpusStore(embeddedCorpus()))
	res, err := r.Retrieve(context.Background(), &Request{Query: "chunk"})
	require.NoError(t, err)
	assert.Equal(t, StrategyLexical, res.Strategy)
	// Every chunk contains "chunk" once; ties keep corpus order.
	require.Len(t, res.Results, 3)
	assert.Equal(t, "1", res.Results[0].Document.ID)
	assert.Equal(t, "2", res.Results[1].Document.ID)
	assert.Equal(t, "3", res.Results[2].Document.ID)
}

func TestRetrieve_LexicalExcludesZeroScores(t *testing.T) {
	store := corpusOf(
		&document.Document{ID: "1", Title: "Battery", Content: "battery info"},
		&document.Document{ID: "2", Title: "Wheels", Content: "wheel info"},
	)
	r := New(WithCorpusStore(store))

	res, err := r.Retrieve(context.Background(), &Request{Query: "battery"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "1", res.Results[0].Document.ID)
}

func TestRetrieve_LexicalNoMatchesIsTaggedSearch(t *testing.T) {
	store := corpusOf(&document.Document{ID: "1", Title: "Wheels", Content: "wheel info"})
	r := New(WithCorpusStore(store))

	res, err := r.Retrieve(context.Background(), &Request{Query: "battery"})
	require.NoError(t, err)
	// Searched and found nothing, distinct from "nothing to search".
	assert.Equal(t, SourceCorpus, res.Source)
	assert.Equal(t, StrategyLexical, res.Strategy)
	assert.Empty(t, res.Results)
}

func TestRetrieve_SessionWithoutEmbedding(t *testing.T) {
	sessions := session.NewService()
	rec := sessions.Create("uploaded manual text", nil, "manual.pdf")

	r := New(WithSessionService(sessions), WithCorpusStore(embeddedCorpus()))
	res, err := r.Retrieve(context.Background(), &Request{
		Query:     "anything at all",
		SessionID: rec.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceUploadedDocument, res.Source)
	assert.Equal(t, "uploaded-document", res.SearchType())
	require.Len(t, res.Results, 1)
	assert.Equal(t, "uploaded manual text", res.Results[0].Document.Content)
	assert.Equal(t, "manual.pdf", res.Results[0].Document.Title)
}

func TestRetrieve_SessionWithEmbeddingScoresButAlwaysReturns(t *testing.T) {
	sessions := session.NewService()
	rec := sessions.Create("uploaded manual text", []float64{0, 1}, "manual.pdf")

	// Query embedding orthogonal to the record: score 0, still returned.
	emb := &stubEmbedder{vec: []float64{1, 0}}
	r := New(WithEmbedder(emb), WithSessionService(sessions), WithCorpusStore(embeddedCorpus()))

	res, err := r.Retrieve(context.Background(), &Request{Query: "unrelated", SessionID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, SourceUploadedDocument, res.Source)
	require.Len(t, res.Results, 1)
	assert.InDelta(t, 0.0, res.Results[0].Score, 1e-9)
}

func TestRetrieve_UnknownSessionFallsThroughToCorpus(t *testing.T) {
	sessions := session.NewService()
	emb := &stubEmbedder{vec: []float64{1, 0}}
	r := New(WithEmbedder(emb), WithSessionService(sessions), WithCorpusStore(embeddedCorpus()))

	res, err := r.Retrieve(context.Background(), &Request{Query: "chunk", SessionID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, SourceCorpus, res.Source)
}

func TestRetrieve_UploadThenRetrieveRoundTrip(t *testing.T) {
	sessions := session.NewService()
	r := New(WithSessionService(sessions), WithCorpusStore(embeddedCorpus()))

	rec := sessions.Create("freshly uploaded", nil, "fresh.pdf")
	res, err := r.Retrieve(context.Background(), &Request{Query: "chunk one", SessionID: rec.ID})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "freshly uploaded", res.Results[0].Document.Content)
}

func TestRetrieve_TopKDefaultAndOverride(t *testing.T) {
	docs := make([]*document.Document, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, &document.Document{ID: string(rune('a' + i)), Title: "battery", Content: "battery"})
	}
	r := New(WithCorpusStore(corpusOf(docs...)))

	res, err := r.Retrieve(context.Background(), &Request{Query: "battery"})
	require.NoError(t, err)
	assert.Len(t, res.Results, DefaultTopK)

	res, err = r.Retrieve(context.Background(), &Request{Query: "battery", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestRetrieve_ParallelScoringMatchesSequential(t *testing.T) {
	docs := make([]*document.Document, 0, 600)
	for i := 0; i < 600; i++ {
		title := "other"
		if i%3 == 0 {
			title = "battery"
		}
		docs = append(docs, &document.Document{ID: "c", Title: title, Content: "battery text"})
	}

	seq := New(WithCorpusStore(corpusOf(docs...)))
	par := New(WithCorpusStore(corpusOf(docs...)), WithScoringParallelism(8))

	seqRes, err := seq.Retrieve(context.Background(), &Request{Query: "battery", TopK: 20})
	require.NoError(t, err)
	parRes, err := par.Retrieve(context.Background(), &Request{Query: "battery", TopK: 20})
	require.NoError(t, err)

	require.Len(t, parRes.Results, len(seqRes.Results))
	for i := range seqRes.Results {
		assert.Equal(t, seqRes.Results[i].Score, parRes.Results[i].Score)
	}
}
