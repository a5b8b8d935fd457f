//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-assistant-go/chat"
	"trpc.group/trpc-go/trpc-assistant-go/corpus"
	"trpc.group/trpc-go/trpc-assistant-go/document"
	"trpc.group/trpc-go/trpc-assistant-go/retrieval"
	"trpc.group/trpc-go/trpc-assistant-go/session"
)

type staticProvider struct {
	docs []*document.Document
}

func (p *staticProvider) Name() string { return "static" }
func (p *staticProvider) Load(ctx context.Context, corpusID string) ([]*document.Document, error) {
	return p.docs, nil
}

func testRetriever() *retrieval.Retriever {
	store := corpus.New(corpus.WithProviders(&staticProvider{docs: []*document.Document{
		{ID: "p1", Title: "Battery System", Content: "The battery charges in 30 minutes."},
		{ID: "p2", Title: "Lighting", Content: "Ambient lighting has 26 colors."},
	}}))
	return retrieval.New(retrieval.WithCorpusStore(store))
}

func TestHandleSearch(t *testing.T) {
	srv := New(WithRetriever(testRetriever()))

	body, _ := json.Marshal(&searchRequest{Query: "battery"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "lexical", resp.SearchType)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "p1", resp.Results[0].ID)
	assert.Equal(t, "The battery charges in 30 minutes.", resp.Results[0].Text)
	assert.Equal(t, "The battery charges in 30 minutes.", resp.Results[0].Preview)
}

func TestHandleSearch_EmptyQuery(t *testing.T) {
	srv := New(WithRetriever(testRetriever()))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"  "}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Query is required", resp.Error)
}

func TestHandleSearch_InvalidBody(t *testing.T) {
	srv := New(WithRetriever(testRetriever()))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpload_NoFile(t *testing.T) {
	srv := New()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("other", "value"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No PDF uploaded", resp.Error)
}

func TestHandleUpload_InvalidPDF(t *testing.T) {
	srv := New()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(uploadFormField, "broken.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("this is not a pdf"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleSessions(t *testing.T) {
	sessions := session.NewService()
	rec := sessions.Create("uploaded text", []float64{0.1, 0.2}, "manual.pdf")

	srv := New(WithSessionService(sessions))

	// GET existing.
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+rec.ID, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, rec.ID, resp.SessionID)
	assert.Equal(t, "manual.pdf", resp.FileName)
	assert.Equal(t, len("uploaded text"), resp.TextLength)
	assert.True(t, resp.HasEmbedding)

	// DELETE existing.
	req = httptest.NewRequest(http.MethodDelete, "/api/sessions/"+rec.ID, nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sessions.Has(rec.ID))

	// GET deleted.
	req = httptest.NewRequest(http.MethodGet, "/api/sessions/"+rec.ID, nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func newMockChatClient(t *testing.T, answer string) (*chat.Client, func()) {
	t.Helper()
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "deepseek-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return chat.New(chat.WithAPIKey("test"), chat.WithBaseURL(mock.URL)), mock.Close
}

func TestHandleChat(t *testing.T) {
	client, closeMock := newMockChatClient(t, "The battery charges in 30 minutes.")
	defer closeMock()

	srv := New(WithRetriever(testRetriever()), WithChatClient(client))

	body, _ := json.Marshal(&chatRequest{Question: "How fast does the battery charge?", Lang: "en"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The battery charges in 30 minutes.", resp.Response)
	assert.Equal(t, "corpus", resp.Source)
	assert.Equal(t, "en", resp.Lang)
}

func TestHandleChat_MissingQuestion(t *testing.T) {
	client, closeMock := newMockChatClient(t, "unused")
	defer closeMock()

	srv := New(WithChatClient(client))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"lang":"de"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_NotConfigured(t *testing.T) {
	srv := New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleChatStream_UploadedDocumentAttribution(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"id":"cmpl-1","object":"chat.completion.chunk","model":"deepseek-chat","choices":[{"index":0,"delta":{"content":"Answer."}}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer mock.Close()

	sessions := session.NewService()
	rec := sessions.Create("uploaded text", nil, "manual.pdf")

	srv := New(
		WithSessionService(sessions),
		WithChatClient(chat.New(chat.WithAPIKey("test"), chat.WithBaseURL(mock.URL))),
	)

	body, _ := json.Marshal(&chatRequest{Question: "What does it say?", SessionID: rec.ID})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en", w.Header().Get("X-Language"))
	assert.Equal(t, "Using information from \"manual.pdf\":\n\nAnswer.", w.Body.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "1234567890...", preview("1234567890abc", 10))
}
