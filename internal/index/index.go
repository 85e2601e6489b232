// Package index is the vector index over lesson plan documents: documents
// are chunked, embedded, and stored; queries return the nearest chunks by
// cosine distance.
package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"stemchat/internal/domain"
	"stemchat/internal/store"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Storage is the persistence the index needs; *store.Session satisfies it.
type Storage interface {
	AddLessonDocument(ctx context.Context, doc domain.LessonDocument, chunks []domain.LessonChunk) error
	AllChunks(ctx context.Context) ([]store.ChunkRecord, error)
}

type Config struct {
	Storage   Storage
	Embedder  Embedder
	ChunkSize int // words per chunk
	Overlap   int // overlapping words between consecutive chunks
	Logger    *slog.Logger
}

type Index struct {
	storage   Storage
	embedder  Embedder
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

func New(cfg Config) *Index {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Index{
		storage:   cfg.Storage,
		embedder:  cfg.Embedder,
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.Overlap,
		logger:    cfg.Logger,
	}
}

// AddDocument chunks, embeds, and persists one lesson plan. The document id
// is derived from the content hash so re-adding the same content replaces
// rather than duplicates.
func (ix *Index) AddDocument(ctx context.Context, filename, subject string, grade int, content string) (*domain.LessonDocument, error) {
	hash := sha256.Sum256([]byte(content))
	docID := fmt.Sprintf("%x", hash[:8])

	pieces := chunkText(content, ix.chunkSize, ix.overlap)
	chunks := make([]domain.LessonChunk, 0, len(pieces))
	for i, piece := range pieces {
		vec, err := ix.embedder.Embed(ctx, piece)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d of %s: %w", i, filename, err)
		}
		chunks = append(chunks, domain.LessonChunk{
			ID:         fmt.Sprintf("%s-%d", docID, i),
			DocumentID: docID,
			Content:    piece,
			ChunkIndex: i,
			Embedding:  vec,
		})
	}

	doc := domain.LessonDocument{
		ID:         docID,
		Filename:   filename,
		Subject:    subject,
		Grade:      grade,
		ChunkCount: len(chunks),
	}
	if err := ix.storage.AddLessonDocument(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	ix.logger.Info("lesson plan indexed", "filename", filename, "chunks", len(chunks))
	return &doc, nil
}

// Query returns the k nearest chunks to the query vector, closest first.
// Distance is cosine distance (1 - similarity), so smaller is closer.
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.LessonSearchResult, error) {
	if k <= 0 {
		k = 5
	}
	records, err := ix.storage.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	results := make([]domain.LessonSearchResult, 0, len(records))
	for _, r := range records {
		sim := cosineSimilarity(vector, r.Embedding)
		results = append(results, domain.LessonSearchResult{
			Document: r.Content,
			Metadata: r.Metadata,
			Distance: float64(1 - sim),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// cosineSimilarity computes cosine similarity between two vectors. Returns
// 0.0 for zero-norm vectors or mismatched lengths.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	na := float32(math.Sqrt(float64(normA)))
	nb := float32(math.Sqrt(float64(normB)))
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (na * nb)
}

// chunkText splits text into overlapping chunks of approximately chunkSize
// words.
func chunkText(text string, chunkSize, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkSize {
		return []string{strings.Join(words, " ")}
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
