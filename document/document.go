// Package document defines the unit of retrievable text used across the
// corpus, retrieval and session packages.
package document

// Document represents a chunk of retrievable text with optional metadata
// and a precomputed embedding vector.
type Document struct {
	// ID is the stable identifier of the chunk (page number, section id or
	// title). It is not guaranteed to be unique across corpus sources.
	ID string `json:"id,omitempty"`

	// Title is a human-readable label. May be empty.
	Title string `json:"title,omitempty"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Embedding is the precomputed embedding vector for Content.
	// Nil when no embedding was computed for this chunk.
	Embedding []float64 `json:"embedding,omitempty"`

	// Metadata contains additional information about the chunk.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsEmpty checks if the document has no content.
func (d *Document) IsEmpty() bool {
	return d == nil || d.Content == ""
}

// HasEmbedding reports whether the document carries a precomputed embedding.
func (d *Document) HasEmbedding() bool {
	return d != nil && len(d.Embedding) > 0
}

// Clone creates a deep copy of the document.
func (d *Document) Clone() *Document {
	clone := &Document{
		ID:      d.ID,
		Title:   d.Title,
		Content: d.Content,
	}
	if d.Embedding != nil {
		clone.Embedding = make([]float64, len(d.Embedding))
		copy(clone.Embedding, d.Embedding)
	}
	if d.Metadata != nil {
		clone.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
