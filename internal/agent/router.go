package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"stemchat/internal/domain"
	"stemchat/internal/llm"
	"stemchat/internal/metrics"
)

const fallbackAgentName = "GeneralLLM"

// fallbackPreamble is the fixed role preamble for the generic-completion
// fallback when no registered agent claims a message.
const fallbackPreamble = "You are an AI assistant for a STEM center group chat. " +
	"You help teachers with inventory, lesson plans, approvals, and procurement. " +
	"Be concise, helpful, and professional. If you're unsure, guide the user on what you can help with."

// Router holds an ordered registry of agents and arbitrates among them by
// confidence. Registration order is significant: it breaks confidence ties,
// first registered wins. Construct one Router at startup and inject it; there
// is no package-level instance.
type Router struct {
	agents []Agent
	gen    Generator
	logger *slog.Logger
}

func NewRouter(gen Generator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{gen: gen, logger: logger}
}

// Register appends an agent to the registry. Order matters for tie-breaks.
func (r *Router) Register(a Agent) {
	r.agents = append(r.agents, a)
}

// AgentInfos returns static metadata for every registered agent.
func (r *Router) AgentInfos() []domain.AgentInfo {
	infos := make([]domain.AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		infos = append(infos, domain.AgentInfo{
			Name:         a.Name(),
			Description:  a.Description(),
			Capabilities: a.Capabilities(),
		})
	}
	return infos
}

type claim struct {
	agent      Agent
	confidence float64
	order      int
}

// RouteMessage asks every agent whether it can handle the message, executes
// the most confident claimant, and falls back to a generic completion when
// nobody claims it. It never panics and always returns a RouteResult with
// Success set.
func (r *Router) RouteMessage(ctx context.Context, text string, rctx domain.RouteContext, s Store) domain.RouteResult {
	start := time.Now()
	defer func() { metrics.RouteLatency.Observe(time.Since(start).Seconds()) }()

	var claims []claim
	for i, a := range r.agents {
		ok, confidence := a.CanHandle(ctx, text, rctx)
		if ok {
			claims = append(claims, claim{agent: a, confidence: confidence, order: i})
		}
	}

	// Highest confidence first; ties go to the earlier-registered agent.
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].confidence > claims[j].confidence
	})

	if len(claims) == 0 {
		return r.fallback(ctx, text)
	}

	best := claims[0]
	r.logger.Debug("routing message", "agent", best.agent.Name(), "confidence", best.confidence)
	metrics.AgentExecutions(best.agent.Name()).Inc()

	result := r.executeSafely(ctx, best.agent, text, rctx, s)
	return domain.RouteResult{
		AgentUsed:  best.agent.Name(),
		Confidence: best.confidence,
		Response:   result.Message,
		Data:       result.Data,
		Success:    result.Success,
		Actions:    result.Actions,
	}
}

// executeSafely runs an agent and converts any panic into a failed result so
// nothing escapes the router boundary.
func (r *Router) executeSafely(ctx context.Context, a Agent, text string, rctx domain.RouteContext, s Store) (result domain.AgentResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("agent panicked", "agent", a.Name(), "panic", rec)
			result = domain.AgentResult{
				Success: false,
				Message: fmt.Sprintf("Error executing agent: %v", rec),
				Actions: []string{"error"},
			}
		}
	}()
	return a.Execute(ctx, text, rctx, s)
}

// fallback answers with a generic completion at fixed confidence 0.3.
func (r *Router) fallback(ctx context.Context, text string) domain.RouteResult {
	metrics.FallbackTotal.Inc()
	response, err := r.gen.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fallbackPreamble},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if err != nil {
		r.logger.Warn("fallback completion failed", "error", err)
		return domain.RouteResult{
			AgentUsed:  fallbackAgentName,
			Confidence: 0.0,
			Response:   fmt.Sprintf("Sorry, I encountered an error: %v", err),
			Success:    false,
			Actions:    []string{"error"},
		}
	}
	return domain.RouteResult{
		AgentUsed:  fallbackAgentName,
		Confidence: 0.3,
		Response:   response,
		Success:    true,
		Actions:    []string{"general_chat"},
	}
}
