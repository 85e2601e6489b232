package domain

// RouteContext carries per-message context handed to agents alongside the
// raw text: who sent it and when.
type RouteContext struct {
	Username  string
	Timestamp int64
}

// AgentResult is what every agent execution produces. Execution never lets
// an error escape past the router boundary; failures are reported through
// Success=false with a human-readable Message.
type AgentResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data"`
	Actions []string `json:"actions"`
}

// RouteResult is the router's normalized output, regardless of whether a
// registered agent or the generic fallback produced it.
type RouteResult struct {
	AgentUsed  string   `json:"agent_used"`
	Confidence float64  `json:"confidence"`
	Response   string   `json:"response"`
	Data       any      `json:"data"`
	Success    bool     `json:"success"`
	Actions    []string `json:"actions"`
}

// AgentInfo is the static self-description an agent exposes for discovery.
type AgentInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}
