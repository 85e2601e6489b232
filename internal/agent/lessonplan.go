package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stemchat/internal/domain"
	"stemchat/internal/llm"
)

// Searcher is the retrieval collaborator for lesson plan lookups;
// *index.Index satisfies it.
type Searcher interface {
	Query(ctx context.Context, vector []float32, k int) ([]domain.LessonSearchResult, error)
}

// Embedder turns a query into a vector in the same space as the indexed
// lesson chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var lessonKeywords = []string{
	"lesson", "curriculum", "plan", "activity", "worksheet", "experiment",
	"project", "grade", "subject", "topic", "find", "recommend", "search",
}

const (
	lessonTopK          = 5
	summarizeThreshold  = 200
	summarizeInputLimit = 1000
	truncateFallbackLen = 500
)

// summaryPrefixes are boilerplate openers models tend to add despite being
// told not to; they are stripped from summaries.
var summaryPrefixes = []string{
	"Here is a 2-3 sentence summary of the lesson plan:",
	"Here is a summary:",
	"Summary:",
	"This lesson plan",
	"The lesson plan",
}

// LessonPlanAgent finds and recommends lesson plans using semantic search
// over the vector index, with LLM summarization of the hits.
type LessonPlanAgent struct {
	searcher Searcher
	embedder Embedder
	gen      Generator
	logger   *slog.Logger
}

func NewLessonPlanAgent(searcher Searcher, embedder Embedder, gen Generator, logger *slog.Logger) *LessonPlanAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &LessonPlanAgent{searcher: searcher, embedder: embedder, gen: gen, logger: logger}
}

func (a *LessonPlanAgent) Name() string { return "LessonPlanAgent" }

func (a *LessonPlanAgent) Description() string {
	return "Finds and recommends lesson plans using semantic search and LLM summarization"
}

func (a *LessonPlanAgent) Capabilities() []string {
	return []string{
		"Semantic search for lesson plans",
		"Curriculum alignment",
		"Smart recommendations",
		"Document retrieval",
	}
}

// CanHandle uses keyword density only: two or more lesson-domain keywords
// claim at 0.8, a single keyword claims weakly at 0.5.
func (a *LessonPlanAgent) CanHandle(ctx context.Context, text string, rctx domain.RouteContext) (bool, float64) {
	msg := strings.ToLower(text)
	hits := 0
	for _, kw := range lessonKeywords {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	switch {
	case hits >= 2:
		return true, 0.8
	case hits == 1:
		return true, 0.5
	default:
		return false, 0.0
	}
}

// Execute embeds the query, retrieves the nearest lesson chunks, and renders
// a numbered report with a summary per hit.
func (a *LessonPlanAgent) Execute(ctx context.Context, text string, rctx domain.RouteContext, s Store) domain.AgentResult {
	vector, err := a.embedder.Embed(ctx, text)
	if err != nil {
		a.logger.Warn("lesson query embedding failed", "error", err)
		return domain.AgentResult{
			Success: false,
			Message: "I couldn't search the lesson plan library right now. Please try again later.",
			Actions: []string{"lesson_plan_search"},
		}
	}

	results, err := a.searcher.Query(ctx, vector, lessonTopK)
	if err != nil {
		a.logger.Warn("lesson index query failed", "error", err)
		return domain.AgentResult{
			Success: false,
			Message: "I couldn't search the lesson plan library right now. Please try again later.",
			Actions: []string{"lesson_plan_search"},
		}
	}

	var entries []string
	metadatas := make([]domain.LessonMetadata, 0, len(results))
	for i, res := range results {
		metadatas = append(metadatas, res.Metadata)

		// Full chunk text when present, stored snippet otherwise.
		raw := res.Document
		if raw == "" {
			raw = res.Metadata.Snippet
		}

		display := raw
		if len(raw) > summarizeThreshold {
			display = a.summarize(ctx, raw, text)
		}

		filename := res.Metadata.Filename
		if filename == "" {
			filename = "Unknown"
		}
		entries = append(entries, fmt.Sprintf("\n[%d] %s\n\n%s\n", i+1, filename, display))
	}

	response := "No relevant lesson plans found."
	if len(entries) > 0 {
		separator := "\n" + strings.Repeat("=", 60) + "\n"
		response = "Top lesson plans found:\n" + strings.Join(entries, separator)
	}

	return domain.AgentResult{
		Success: true,
		Message: response,
		Data:    metadatas,
		Actions: []string{"lesson_plan_search"},
	}
}

// summarize asks the model for a 2-3 sentence summary of the lesson content,
// feeding at most the first 1000 characters. When generation fails it falls
// back to plain truncation.
func (a *LessonPlanAgent) summarize(ctx context.Context, content, query string) string {
	if len(content) < 100 {
		return content
	}
	preview := content
	if len(preview) > summarizeInputLimit {
		preview = preview[:summarizeInputLimit]
	}

	return llm.OrFallback(ctx, a.logger, "lesson_summary", func(ctx context.Context) (string, error) {
		out, err := a.gen.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{
				{Role: "system", Content: "You are a helpful assistant that summarizes lesson plans concisely. Provide a 2-3 sentence summary highlighting the key learning objectives and activities. Do not include phrases like 'Here is a summary' or 'This lesson plan' - just provide the summary directly."},
				{Role: "user", Content: fmt.Sprintf("User is looking for: %s\n\nLesson plan content:\n%s\n\nProvide a concise 2-3 sentence summary of this lesson plan.", query, preview)},
			},
			Temperature: 0.3,
			MaxTokens:   150,
		})
		if err != nil {
			return "", err
		}
		return stripSummaryPrefixes(out), nil
	}, func() string {
		return truncateText(content, truncateFallbackLen)
	})
}

func stripSummaryPrefixes(summary string) string {
	summary = strings.TrimSpace(summary)
	for _, prefix := range summaryPrefixes {
		if strings.HasPrefix(summary, prefix) {
			summary = strings.TrimSpace(strings.TrimPrefix(summary, prefix))
			summary = strings.TrimSpace(strings.TrimPrefix(summary, ":"))
		}
	}
	return summary
}

// truncateText cuts text to maxLen, preferring a sentence boundary in the
// final stretch, then a word boundary, before a hard cut.
func truncateText(text string, maxLen int) string {
	if text == "" || len(text) <= maxLen {
		return text
	}
	truncated := text[:maxLen]

	lastSentence := -1
	for _, term := range []string{".", "!", "?"} {
		if i := strings.LastIndex(truncated, term); i > lastSentence {
			lastSentence = i
		}
	}
	if lastSentence > int(float64(maxLen)*0.6) {
		truncated = truncated[:lastSentence+1]
	} else if lastSpace := strings.LastIndex(truncated, " "); lastSpace > int(float64(maxLen)*0.7) {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
