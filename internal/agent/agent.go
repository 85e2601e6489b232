// Package agent contains the domain agents that answer triggered chat
// messages, and the router that arbitrates between them.
package agent

import (
	"context"

	"stemchat/internal/domain"
	"stemchat/internal/llm"
)

// Agent is the capability contract every domain agent satisfies.
type Agent interface {
	// Name and Description are static metadata for registry introspection.
	Name() string
	Description() string

	// CanHandle classifies a message without side effects, returning whether
	// this agent claims it and with what confidence in [0,1].
	CanHandle(ctx context.Context, text string, rctx domain.RouteContext) (bool, float64)

	// Execute performs the agent's work. It may do I/O but must not panic or
	// return an error past this boundary: internal failures become an
	// AgentResult with Success=false.
	Execute(ctx context.Context, text string, rctx domain.RouteContext, s Store) domain.AgentResult

	// Capabilities is a static self-description for discovery.
	Capabilities() []string
}

// Store is the storage surface agents execute against. Each execution gets a
// session owned by its unit of work; *store.Session satisfies this.
type Store interface {
	SearchItems(ctx context.Context, q string) ([]domain.InventoryItem, error)
	AllItems(ctx context.Context) ([]domain.InventoryItem, error)
	LowStockItems(ctx context.Context) ([]domain.InventoryItem, error)
	CreateItem(ctx context.Context, item domain.InventoryItem, reason string, userID *int64) (domain.InventoryItem, error)
	AdjustQuantity(ctx context.Context, itemID int64, delta float64, txType, reason string, userID *int64) (float64, error)
	SuppliersForItem(ctx context.Context, itemName string) ([]domain.Supplier, error)
}

// Generator is the natural-language generation collaborator; *llm.Client
// satisfies it, tests substitute stubs.
type Generator interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}
