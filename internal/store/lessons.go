package store

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"stemchat/internal/domain"
)

// embeddingToBytes serializes a vector as little-endian float32s.
func embeddingToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// bytesToEmbedding converts a little-endian byte slice back to []float32.
func bytesToEmbedding(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return out
}

// AddLessonDocument stores a document and its embedded chunks atomically.
// Re-adding a document with the same id replaces its chunks.
func (s *Session) AddLessonDocument(ctx context.Context, doc domain.LessonDocument, chunks []domain.LessonChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO lesson_documents (id, filename, subject, grade, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Subject, doc.Grade, len(chunks), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lesson_chunks WHERE document_id = ?`, doc.ID); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lesson_chunks (id, document_id, content, chunk_index, embedding)
			 VALUES (?, ?, ?, ?, ?)`,
			c.ID, doc.ID, c.Content, c.ChunkIndex, embeddingToBytes(c.Embedding)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ChunkRecord is a chunk joined with its document metadata, as loaded for
// similarity search.
type ChunkRecord struct {
	ChunkID   string
	Content   string
	Embedding []float32
	Metadata  domain.LessonMetadata
}

// AllChunks loads every embedded chunk with its document metadata.
func (s *Session) AllChunks(ctx context.Context) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.content, c.embedding, d.filename, COALESCE(d.subject, ''), COALESCE(d.grade, 0)
		 FROM lesson_chunks c JOIN lesson_documents d ON d.id = c.document_id
		 WHERE c.embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		var r ChunkRecord
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.Content, &blob, &r.Metadata.Filename, &r.Metadata.Subject, &r.Metadata.Grade); err != nil {
			return nil, err
		}
		r.Embedding = bytesToEmbedding(blob)
		r.Metadata.Snippet = snippet(r.Content, 200)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountLessonDocuments returns the number of indexed documents.
func (s *Session) CountLessonDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lesson_documents`).Scan(&n)
	return n, err
}

func snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}
