//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package session provides an in-memory store for uploaded-document
// sessions. A session associates an opaque identifier with the extracted
// text of a single user-uploaded document for the lifetime of the process.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTextLength bounds the stored document text so downstream
// prompts stay within model limits.
const DefaultMaxTextLength = 8000

// Record is the extracted state of one uploaded document.
type Record struct {
	// ID is the opaque session identifier handed back to the caller.
	ID string

	// Text is the extracted plain text, capped at the service's text limit.
	Text string

	// Embedding is a single embedding of the capped text.
	// Nil when the embedding provider was unavailable at upload time.
	Embedding []float64

	// FileName is the name of the uploaded file.
	FileName string

	// UploadedAt is when the record was created.
	UploadedAt time.Time
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := &Record{
		ID:         r.ID,
		Text:       r.Text,
		FileName:   r.FileName,
		UploadedAt: r.UploadedAt,
	}
	if r.Embedding != nil {
		clone.Embedding = make([]float64, len(r.Embedding))
		copy(clone.Embedding, r.Embedding)
	}
	return clone
}

// serviceOpts is the options for the session service.
type serviceOpts struct {
	maxTextLength int
	ttl           time.Duration
	maxSessions   int
}

// ServiceOpt is the option for the session service.
type ServiceOpt func(*serviceOpts)

// WithMaxTextLength sets the cap applied to stored document text.
// Zero or negative disables the cap.
func WithMaxTextLength(n int) ServiceOpt {
	return func(opts *serviceOpts) {
		opts.maxTextLength = n
	}
}

// WithTTL sets a time-to-live for session records. Expired records are
// treated as absent and removed lazily. Zero disables expiry.
func WithTTL(ttl time.Duration) ServiceOpt {
	return func(opts *serviceOpts) {
		opts.ttl = ttl
	}
}

// WithMaxSessions caps the number of live sessions; the oldest record is
// evicted when the cap is exceeded. Zero disables the cap.
func WithMaxSessions(n int) ServiceOpt {
	return func(opts *serviceOpts) {
		opts.maxSessions = n
	}
}

// Service is a process-wide, mutex-guarded map of session records.
type Service struct {
	mu      sync.RWMutex
	records map[string]*Record
	opts    serviceOpts
}

// NewService creates a new in-memory session service.
// By default text is capped at DefaultMaxTextLength and records never expire.
func NewService(options ...ServiceOpt) *Service {
	opts := serviceOpts{
		maxTextLength: DefaultMaxTextLength,
	}
	for _, option := range options {
		option(&opts)
	}
	return &Service{
		records: make(map[string]*Record),
		opts:    opts,
	}
}

// Create stores a new record for the given document text and returns its
// generated session ID. The text is capped at the configured limit.
func (s *Service) Create(text string, embedding []float64, fileName string) *Record {
	text = truncate(text, s.opts.maxTextLength)
	rec := &Record{
		ID:         uuid.New().String(),
		Text:       text,
		Embedding:  embedding,
		FileName:   fileName,
		UploadedAt: time.Now(),
	}
	s.Put(rec)
	return rec.Clone()
}

// Put stores a record under its ID, overwriting any existing record.
func (s *Service) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec.Clone()
	s.evictLocked()
}

// Get returns the record for the given session ID, or nil if the session
// does not exist or has expired.
func (s *Service) Get(sessionID string) *Record {
	s.mu.RLock()
	rec, ok := s.records[sessionID]
	if ok && !s.expired(rec) {
		defer s.mu.RUnlock()
		return rec.Clone()
	}
	s.mu.RUnlock()

	if ok {
		// Expired: drop it so the map does not accumulate dead entries.
		s.mu.Lock()
		if cur, still := s.records[sessionID]; still && s.expired(cur) {
			delete(s.records, sessionID)
		}
		s.mu.Unlock()
	}
	return nil
}

// Has reports whether a live session exists for the given ID.
func (s *Service) Has(sessionID string) bool {
	return s.Get(sessionID) != nil
}

// Delete removes the record for the given session ID.
func (s *Service) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
}

// Len returns the number of stored records, including not-yet-collected
// expired ones.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// truncate caps text at n characters, never splitting a rune.
func truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func (s *Service) expired(rec *Record) bool {
	return s.opts.ttl > 0 && time.Since(rec.UploadedAt) > s.opts.ttl
}

// evictLocked enforces the max-session cap. Caller must hold the write lock.
func (s *Service) evictLocked() {
	if s.opts.maxSessions <= 0 {
		return
	}
	for len(s.records) > s.opts.maxSessions {
		var oldestID string
		var oldestAt time.Time
		for id, rec := range s.records {
			if oldestID == "" || rec.UploadedAt.Before(oldestAt) {
				oldestID = id
				oldestAt = rec.UploadedAt
			}
		}
		delete(s.records, oldestID)
	}
}
