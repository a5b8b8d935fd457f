//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

package server

// searchRequest is the body of POST /api/search.
type searchRequest struct {
	Query     string  `json:"query"`
	SessionID string  `json:"sessionId,omitempty"`
	CorpusID  string  `json:"corpusId,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// searchResult is one ranked chunk on the wire.
type searchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Preview string  `json:"preview"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// searchResponse is the body of a successful search.
type searchResponse struct {
	Success    bool            `json:"success"`
	SearchType string          `json:"searchType"`
	Results    []*searchResult `json:"results"`
}

// uploadResponse is the body of a successful upload.
type uploadResponse struct {
	Success        bool   `json:"success"`
	SessionID      string `json:"sessionId"`
	FileName       string `json:"fileName"`
	ContentPreview string `json:"contentPreview"`
}

// chatRequest is the body of POST /api/chat and /api/chat/stream.
type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId,omitempty"`
	CorpusID  string `json:"corpusId,omitempty"`
	Model     string `json:"model,omitempty"`
	Year      string `json:"year,omitempty"`
	Lang      string `json:"lang,omitempty"`
}

// chatResponse is the body of a chat answer.
type chatResponse struct {
	Response string `json:"response"`
	Source   string `json:"source"`
	Lang     string `json:"lang"`
}

// sessionResponse describes an uploaded-document session.
type sessionResponse struct {
	SessionID    string `json:"sessionId"`
	FileName     string `json:"fileName"`
	UploadedAt   string `json:"uploadedAt"`
	TextLength   int    `json:"textLength"`
	HasEmbedding bool   `json:"hasEmbedding"`
}

// errorResponse is the body of any failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
