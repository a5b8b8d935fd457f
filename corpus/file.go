//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trpc.group/trpc-go/trpc-assistant-go/document"
)

// chunkEntry is the on-disk shape of one corpus chunk. It covers both the
// precomputed-embeddings format ({page, title, text, embedding}) and the
// raw-content format ({pageNumber, title, ocrText, rawText}).
type chunkEntry struct {
	ID         string      `json:"id"`
	Page       json.Number `json:"page"`
	PageNumber json.Number `json:"pageNumber"`
	SectionID  string      `json:"sectionId"`
	Title      string      `json:"title"`
	Text       string      `json:"text"`
	Content    string      `json:"content"`
	OCRText    string      `json:"ocrText"`
	RawText    string      `json:"rawText"`
	Embedding  []float64   `json:"embedding"`
}

// toDocument normalizes a chunk entry. It returns nil when the chunk has no
// text after trimming.
func (e *chunkEntry) toDocument() *document.Document {
	text := e.Text
	if text == "" {
		text = e.Content
	}
	if text == "" {
		// Raw-content format: OCR text and raw extraction are concatenated
		// when both are present.
		text = e.OCRText
		if e.RawText != "" {
			if text != "" {
				text += "\n"
			}
			text += e.RawText
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	id := e.SectionID
	if id == "" {
		id = e.ID
	}
	if id == "" {
		id = e.Page.String()
	}
	if id == "" {
		id = e.PageNumber.String()
	}
	if id == "" {
		id = e.Title
	}
	if id == "" {
		id = "unknown"
	}

	return &document.Document{
		ID:        id,
		Title:     e.Title,
		Content:   text,
		Embedding: e.Embedding,
	}
}

// ParseChunks decodes a corpus JSON payload into documents, dropping
// entries without text after trimming.
func ParseChunks(data []byte) ([]*document.Document, error) {
	var entries []chunkEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	docs := make([]*document.Document, 0, len(entries))
	for i := range entries {
		if doc := entries[i].toDocument(); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// FileProvider loads a corpus from a single JSON file. A missing file is
// not an error; the chain moves on to the next provider.
type FileProvider struct {
	name string
	path string
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a provider reading the given JSON file.
func NewFileProvider(name, path string) *FileProvider {
	return &FileProvider{name: name, path: path}
}

// Name implements the Provider interface.
func (p *FileProvider) Name() string { return p.name }

// Load implements the Provider interface.
func (p *FileProvider) Load(ctx context.Context, corpusID string) ([]*document.Document, error) {
	return loadChunkFile(p.path)
}

// DirProvider loads per-corpus files from {root}/{corpusID}/, trying
// embeddings.json first and content.json second. It supplies nothing when
// the caller gives no corpus ID.
type DirProvider struct {
	name string
	root string
}

var _ Provider = (*DirProvider)(nil)

// NewDirProvider creates a provider scoped to per-corpus subdirectories of root.
func NewDirProvider(name, root string) *DirProvider {
	return &DirProvider{name: name, root: root}
}

// Name implements the Provider interface.
func (p *DirProvider) Name() string { return p.name }

// Load implements the Provider interface.
func (p *DirProvider) Load(ctx context.Context, corpusID string) ([]*document.Document, error) {
	if corpusID == "" {
		return nil, nil
	}
	for _, file := range []string{"embeddings.json", "content.json"} {
		docs, err := loadChunkFile(filepath.Join(p.root, corpusID, file))
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			return docs, nil
		}
	}
	return nil, nil
}

func loadChunkFile(path string) ([]*document.Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseChunks(data)
}
