package domain

import "time"

// LessonDocument is an indexed lesson plan in the knowledge base.
type LessonDocument struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Subject    string    `json:"subject,omitempty"`
	Grade      int       `json:"grade,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// LessonChunk is one indexed slice of a lesson document, stored with its
// embedding vector.
type LessonChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
}

// LessonSearchResult is one vector-index hit: the matched chunk text, the
// document metadata it came from, and its distance to the query vector
// (smaller is closer).
type LessonSearchResult struct {
	Document string         `json:"document"`
	Metadata LessonMetadata `json:"metadata"`
	Distance float64        `json:"distance"`
}

// LessonMetadata is the per-hit metadata payload. Snippet is a stored short
// excerpt used when the full document body is absent.
type LessonMetadata struct {
	Filename string `json:"filename"`
	Subject  string `json:"subject,omitempty"`
	Grade    int    `json:"grade,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}
