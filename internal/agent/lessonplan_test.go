package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"stemchat/internal/domain"
)

type stubSearcher struct {
	results []domain.LessonSearchResult
	err     error
}

func (s *stubSearcher) Query(ctx context.Context, vector []float32, k int) ([]domain.LessonSearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func newLessonAgent(searcher *stubSearcher) *LessonPlanAgent {
	return NewLessonPlanAgent(searcher, &stubEmbedder{}, failingGen{}, testLogger())
}

func TestLessonCanHandleKeywordDensity(t *testing.T) {
	a := newLessonAgent(&stubSearcher{})

	ok, conf := a.CanHandle(context.Background(), "Find me a lesson plan for photosynthesis", domain.RouteContext{})
	if !ok || conf != 0.8 {
		t.Fatalf("two keywords: claimed=%v confidence=%v, want 0.8", ok, conf)
	}

	ok, conf = a.CanHandle(context.Background(), "any worksheet suggestions?", domain.RouteContext{})
	if !ok || conf != 0.5 {
		t.Fatalf("one keyword: claimed=%v confidence=%v, want 0.5", ok, conf)
	}

	ok, _ = a.CanHandle(context.Background(), "how's the weather today", domain.RouteContext{})
	if ok {
		t.Fatal("claimed a message with no lesson keywords")
	}
}

func TestLessonExecuteNoResults(t *testing.T) {
	a := newLessonAgent(&stubSearcher{})

	result := a.Execute(context.Background(), "find a lesson plan", domain.RouteContext{}, nil)
	if !result.Success {
		t.Fatalf("empty search should still succeed: %+v", result)
	}
	if result.Message != "No relevant lesson plans found." {
		t.Fatalf("Message = %q", result.Message)
	}
}

func TestLessonExecuteReportFormat(t *testing.T) {
	searcher := &stubSearcher{results: []domain.LessonSearchResult{
		{
			Document: "Short photosynthesis outline.",
			Metadata: domain.LessonMetadata{Filename: "Grade7_Biology_Photosynthesis.md"},
			Distance: 0.1,
		},
		{
			// No chunk text stored; the snippet stands in.
			Metadata: domain.LessonMetadata{Filename: "Grade8_Chemistry_AcidsBases.md", Snippet: "Acids and bases with red cabbage indicator."},
			Distance: 0.3,
		},
	}}
	a := newLessonAgent(searcher)

	result := a.Execute(context.Background(), "lesson plans please", domain.RouteContext{}, nil)
	if !result.Success {
		t.Fatalf("execute failed: %+v", result)
	}
	if !strings.HasPrefix(result.Message, "Top lesson plans found:\n") {
		t.Fatalf("missing header: %q", result.Message)
	}
	if !strings.Contains(result.Message, "[1] Grade7_Biology_Photosynthesis.md") {
		t.Fatalf("first entry missing: %q", result.Message)
	}
	if !strings.Contains(result.Message, "[2] Grade8_Chemistry_AcidsBases.md") {
		t.Fatalf("second entry missing: %q", result.Message)
	}
	if !strings.Contains(result.Message, "Acids and bases with red cabbage indicator.") {
		t.Fatalf("snippet fallback missing: %q", result.Message)
	}
	if !strings.Contains(result.Message, strings.Repeat("=", 60)) {
		t.Fatalf("separator missing: %q", result.Message)
	}

	metadatas := result.Data.([]domain.LessonMetadata)
	if len(metadatas) != 2 {
		t.Fatalf("got %d metadata entries, want 2", len(metadatas))
	}
}

func TestLessonSummarizeFallsBackToTruncation(t *testing.T) {
	long := strings.Repeat("This lesson covers cell structure in depth. ", 20)
	searcher := &stubSearcher{results: []domain.LessonSearchResult{
		{Document: long, Metadata: domain.LessonMetadata{Filename: "cells.md"}},
	}}
	a := newLessonAgent(searcher)

	result := a.Execute(context.Background(), "lesson on cells", domain.RouteContext{}, nil)
	if !result.Success {
		t.Fatalf("execute failed: %+v", result)
	}
	// With generation down the summary degrades to a truncation ending in "...".
	if !strings.Contains(result.Message, "...") {
		t.Fatalf("expected truncated text: %q", result.Message)
	}
	if strings.Contains(result.Message, long) {
		t.Fatal("full document leaked into the report")
	}
}

func TestLessonExecuteEmbedFailure(t *testing.T) {
	a := NewLessonPlanAgent(&stubSearcher{}, &stubEmbedder{err: fmt.Errorf("no backend")}, failingGen{}, testLogger())

	result := a.Execute(context.Background(), "lesson plan", domain.RouteContext{}, nil)
	if result.Success {
		t.Fatalf("embed failure should not succeed: %+v", result)
	}
}

func TestTruncateText(t *testing.T) {
	// Sentence boundary inside the final stretch wins.
	text := strings.Repeat("x", 340) + ". " + strings.Repeat("y", 300)
	got := truncateText(text, 500)
	if !strings.HasSuffix(got, "....") { // sentence period plus ellipsis
		t.Fatalf("sentence-boundary cut missing: %q", got[len(got)-10:])
	}
	if len(got) > 504 {
		t.Fatalf("truncated text too long: %d", len(got))
	}

	// No sentence end: fall back to a word boundary.
	words := strings.Repeat("alpha beta ", 60)
	got = truncateText(words, 500)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("missing ellipsis: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "..."), " ") {
		t.Fatalf("trailing space before ellipsis: %q", got)
	}

	// Short text passes through untouched.
	if got := truncateText("short", 500); got != "short" {
		t.Fatalf("short text changed: %q", got)
	}
}

func TestStripSummaryPrefixes(t *testing.T) {
	cases := map[string]string{
		"Summary: covers photosynthesis basics.":  "covers photosynthesis basics.",
		"This lesson plan covers acids and bases": "covers acids and bases",
		"Plain summary without prefix.":           "Plain summary without prefix.",
	}
	for in, want := range cases {
		if got := stripSummaryPrefixes(in); got != want {
			t.Fatalf("stripSummaryPrefixes(%q) = %q, want %q", in, got, want)
		}
	}
}
