package llm

import (
	"context"
	"log/slog"
)

// OrFallback runs a collaborator call and, if it fails, substitutes a local
// deterministic result instead of surfacing the error. Every external-service
// boundary (generation, summarization) degrades through this one path, so a
// dead backend produces templated text rather than a raw error.
func OrFallback(ctx context.Context, logger *slog.Logger, op string, call func(context.Context) (string, error), fallback func() string) string {
	out, err := call(ctx)
	if err != nil {
		logger.Warn("collaborator call failed, using local fallback", "op", op, "error", err)
		return fallback()
	}
	return out
}
