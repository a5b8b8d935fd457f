//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the retrieval, upload and chat operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-assistant-go/chat"
	"trpc.group/trpc-go/trpc-assistant-go/document/reader/pdf"
	"trpc.group/trpc-go/trpc-assistant-go/embedder"
	"trpc.group/trpc-go/trpc-assistant-go/log"
	"trpc.group/trpc-go/trpc-assistant-go/retrieval"
	"trpc.group/trpc-go/trpc-assistant-go/session"
)

const (
	// previewLength is how much chunk text a search result preview carries.
	previewLength = 200
	// uploadPreviewLength is how much extracted text the upload response echoes.
	uploadPreviewLength = 300
	// defaultMaxUploadSize caps the multipart form held in memory.
	defaultMaxUploadSize = 20 << 20

	// uploadFormField is the multipart field carrying the PDF.
	uploadFormField = "pdf"
)

// Server wires the retriever, session service and chat client into REST
// endpoints.
type Server struct {
	router *mux.Router

	retriever *retrieval.Retriever
	sessions  *session.Service
	embedder  embedder.Embedder
	chat      *chat.Client
	reader    *pdf.Reader

	vehicleModel  string
	vehicleYear   string
	maxUploadSize int64
}

// Option configures the Server instance.
type Option func(*Server)

// WithRetriever sets the retriever backing /api/search and chat grounding.
func WithRetriever(r *retrieval.Retriever) Option {
	return func(s *Server) { s.retriever = r }
}

// WithSessionService sets the uploaded-document session service.
func WithSessionService(svc *session.Service) Option {
	return func(s *Server) { s.sessions = svc }
}

// WithEmbedder sets the provider used to embed uploaded documents. Without
// one, uploads are stored unembedded and retrieval over them is lexical only.
func WithEmbedder(e embedder.Embedder) Option {
	return func(s *Server) { s.embedder = e }
}

// WithChatClient enables the /api/chat endpoints.
func WithChatClient(c *chat.Client) Option {
	return func(s *Server) { s.chat = c }
}

// WithPDFReader sets the reader used to extract uploaded PDF text.
func WithPDFReader(r *pdf.Reader) Option {
	return func(s *Server) { s.reader = r }
}

// WithVehicle sets the vehicle named in chat system prompts when the request
// does not say otherwise.
func WithVehicle(model, year string) Option {
	return func(s *Server) {
		s.vehicleModel = model
		s.vehicleYear = year
	}
}

// WithMaxUploadSize caps the accepted upload size in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

// New creates the HTTP server.
func New(opts ...Option) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		maxUploadSize: defaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retriever == nil {
		s.retriever = retrieval.New()
	}
	if s.sessions == nil {
		s.sessions = session.NewService()
	}
	if s.reader == nil {
		s.reader = pdf.New()
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "X-Language"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodPost)
	s.router.HandleFunc("/api/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/api/chat/stream", s.handleChatStream).Methods(http.MethodPost)
	s.router.HandleFunc("/api/sessions/{sessionId}", s.handleGetSession).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/{sessionId}", s.handleDeleteSession).Methods(http.MethodDelete)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/api/search", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/api/upload", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/api/chat", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/api/chat/stream", preflight).Methods(http.MethodOptions)
}

// ---- Handlers -----------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	result, err := s.retriever.Retrieve(r.Context(), &retrieval.Request{
		Query:           req.Query,
		SessionID:       req.SessionID,
		CorpusID:        req.CorpusID,
		TopK:            req.Limit,
		VectorThreshold: req.Threshold,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			s.writeError(w, http.StatusBadRequest, "Query is required")
			return
		}
		log.Errorf("search failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]*searchResult, 0, len(result.Results))
	for _, chunk := range result.Results {
		results = append(results, &searchResult{
			ID:      chunk.Document.ID,
			Title:   chunk.Document.Title,
			Preview: preview(chunk.Document.Content, previewLength),
			Text:    chunk.Document.Content,
			Score:   chunk.Score,
		})
	}
	s.writeJSON(w, http.StatusOK, &searchResponse{
		Success:    true,
		SearchType: result.SearchType(),
		Results:    results,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No PDF uploaded")
		return
	}
	defer file.Close()

	text, err := s.reader.ReadFromReader(file)
	if err != nil {
		log.Errorf("failed to extract text from %s: %v", header.Filename, err)
		s.writeError(w, http.StatusUnprocessableEntity, "failed to extract PDF text")
		return
	}
	if strings.TrimSpace(text) == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "PDF contains no extractable text")
		return
	}

	// Embedding failures leave the session unembedded; retrieval over it
	// degrades rather than the upload failing.
	var embedding []float64
	if s.embedder != nil {
		vec, err := s.embedder.GetEmbedding(r.Context(), text)
		if err != nil {
			log.Warnf("failed to embed uploaded document %s: %v", header.Filename, err)
		} else {
			embedding = vec
		}
	}

	rec := s.sessions.Create(text, embedding, header.Filename)
	log.Infof("stored uploaded document %s as session %s", header.Filename, rec.ID)

	s.writeJSON(w, http.StatusOK, &uploadResponse{
		Success:        true,
		SessionID:      rec.ID,
		FileName:       rec.FileName,
		ContentPreview: preview(rec.Text, uploadPreviewLength),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, lang, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	chatReq, source := s.buildChatRequest(r.Context(), req, lang)
	resp, err := s.chat.Chat(r.Context(), chatReq)
	if err != nil {
		log.Errorf("chat completion failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, &chatResponse{
			Response: chat.ErrorMessage(lang),
			Source:   source,
			Lang:     string(lang),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, &chatResponse{
		Response: resp.Content,
		Source:   source,
		Lang:     string(lang),
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, lang, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	chatReq, source := s.buildChatRequest(r.Context(), req, lang)
	stream, err := s.chat.ChatStream(r.Context(), chatReq)
	if err != nil {
		log.Errorf("chat stream failed to start: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to generate streaming response")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Language", string(lang))

	// Answers grounded in an uploaded document lead with the attribution line.
	if source == string(retrieval.SourceUploadedDocument) {
		if rec := s.sessions.Get(req.SessionID); rec != nil {
			fmt.Fprint(w, chat.Attribution(lang, rec.FileName))
			flusher.Flush()
		}
	}

	for chunk := range stream {
		if chunk.Err != nil {
			fmt.Fprint(w, chat.StreamErrorNotice(lang))
			flusher.Flush()
			return
		}
		if chunk.Content == "" {
			continue
		}
		fmt.Fprint(w, chunk.Content)
		flusher.Flush()
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	rec := s.sessions.Get(sessionID)
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, &sessionResponse{
		SessionID:    rec.ID,
		FileName:     rec.FileName,
		UploadedAt:   rec.UploadedAt.UTC().Format(time.RFC3339),
		TextLength:   len(rec.Text),
		HasEmbedding: len(rec.Embedding) > 0,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if !s.sessions.Has(sessionID) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.sessions.Delete(sessionID)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ---- Helpers ------------------------------------------------------------

// decodeChatRequest parses and validates the shared chat request body.
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, chat.Language, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, "", false
	}
	defer r.Body.Close()

	lang := chat.NormalizeLanguage(req.Lang)
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "Question is required")
		return nil, "", false
	}
	if s.chat == nil {
		s.writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return nil, "", false
	}
	return &req, lang, true
}

// buildChatRequest grounds the question: an uploaded-document session wins,
// otherwise relevant corpus chunks are retrieved as context.
func (s *Server) buildChatRequest(ctx context.Context, req *chatRequest, lang chat.Language) (*chat.Request, string) {
	in := chat.PromptInput{
		Language:     lang,
		VehicleModel: req.Model,
		VehicleYear:  req.Year,
	}
	if in.VehicleModel == "" {
		in.VehicleModel = s.vehicleModel
	}
	if in.VehicleYear == "" {
		in.VehicleYear = s.vehicleYear
	}

	source := "none"
	if req.SessionID != "" {
		if rec := s.sessions.Get(req.SessionID); rec != nil {
			in.FileName = rec.FileName
			in.Context = rec.Text
			return &chat.Request{
				System:   chat.BuildSystemPrompt(in),
				Question: req.Question,
			}, string(retrieval.SourceUploadedDocument)
		}
	}

	result, err := s.retriever.Retrieve(ctx, &retrieval.Request{
		Query:    req.Question,
		CorpusID: req.CorpusID,
	})
	if err != nil {
		log.Warnf("context retrieval failed, answering without context: %v", err)
	} else if len(result.Results) > 0 {
		parts := make([]string, 0, len(result.Results))
		for _, chunk := range result.Results {
			parts = append(parts, chunk.Document.Content)
		}
		in.Context = strings.Join(parts, "\n\n")
		source = string(result.Source)
	}

	return &chat.Request{
		System:   chat.BuildSystemPrompt(in),
		Question: req.Question,
	}, source
}

// preview returns up to n characters of text, with an ellipsis when cut.
// The cut respects rune boundaries.
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, &errorResponse{Error: msg})
}
