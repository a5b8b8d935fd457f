//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package similarity implements the two scoring strategies used for
// retrieval: cosine similarity over embedding vectors and a lexical
// term-overlap score for corpora without embeddings.
package similarity

import (
	"math"
	"strings"
)

// minTokenLength drops short stop-word-like tokens from lexical queries.
const minTokenLength = 3

// titleMatchWeight biases lexical scoring toward title matches.
const titleMatchWeight = 3

// Cosine calculates the cosine similarity between two vectors.
// It returns 0 for empty or mismatched vectors and for vectors with zero
// magnitude, so callers never see a division by zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Lexical scores a chunk against a query by literal term overlap:
// titleMatchWeight points for every distinct query term contained in the
// title, plus one point for every occurrence of a query term in the body.
// A query sharing no terms with the chunk scores 0.
func Lexical(query, title, content string) float64 {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return 0
	}

	lowerTitle := strings.ToLower(title)
	lowerContent := strings.ToLower(content)

	var titleMatches, contentMatches int
	for _, term := range terms {
		if strings.Contains(lowerTitle, term) {
			titleMatches++
		}
		contentMatches += strings.Count(lowerContent, term)
	}
	return float64(titleMatches*titleMatchWeight + contentMatches)
}

// Tokenize lower-cases the text, splits on whitespace and keeps distinct
// tokens longer than two characters, preserving first-seen order.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
