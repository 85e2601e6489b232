// Package server is the HTTP surface: auth, message CRUD, inventory and
// supplier endpoints, agent discovery, the WebSocket fan-out, and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stemchat/internal/auth"
	"stemchat/internal/chat"
	"stemchat/internal/config"
	"stemchat/internal/domain"
	"stemchat/internal/metrics"
	"stemchat/internal/store"
)

const defaultMessageLimit = 50

// AgentRegistry exposes agent metadata for the discovery endpoint;
// *agent.Router satisfies it.
type AgentRegistry interface {
	AgentInfos() []domain.AgentInfo
}

type Server struct {
	cfg    config.ServerConfig
	store  *store.Store
	chat   *chat.Service
	tokens *auth.TokenService
	agents AgentRegistry
	hub    *Hub
	logger *slog.Logger

	httpServer *http.Server
}

func New(cfg config.ServerConfig, st *store.Store, chatSvc *chat.Service, tokens *auth.TokenService, agents AgentRegistry, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		store:  st,
		chat:   chatSvc,
		tokens: tokens,
		agents: agents,
		hub:    hub,
		logger: logger,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("GET /api/messages", s.authed(s.handleGetMessages))
	mux.HandleFunc("POST /api/messages", s.authed(s.handlePostMessage))
	mux.HandleFunc("DELETE /api/messages", s.authed(s.handleClearMessages))
	mux.HandleFunc("PUT /api/messages/{id}", s.authed(s.handleEditMessage))
	mux.HandleFunc("DELETE /api/messages/{id}", s.authed(s.handleDeleteMessage))

	mux.HandleFunc("GET /api/inventory", s.handleGetInventory)
	mux.HandleFunc("GET /api/inventory/low-stock", s.handleGetLowStock)
	mux.HandleFunc("POST /api/inventory", s.authed(s.handleAddInventoryItem))
	mux.HandleFunc("PUT /api/inventory/{id}", s.authed(s.handleUpdateInventory))

	mux.HandleFunc("GET /api/suppliers", s.handleGetSuppliers)
	mux.HandleFunc("POST /api/suppliers", s.authed(s.handleAddSupplier))

	mux.HandleFunc("GET /api/agents", s.handleGetAgents)

	mux.HandleFunc("GET /ws", s.hub.HandleWS)
	mux.Handle("GET /metrics", metrics.Default.Handler())

	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

// Run serves until ctx is cancelled, then drains WebSocket clients and
// pending reply units before shutting down.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("http server starting", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.hub.CloseAll()
		s.chat.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// authed wraps a handler with bearer-token verification; the username is
// passed through to the handler.
func (s *Server) authed(fn func(w http.ResponseWriter, r *http.Request, username string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, err := s.tokens.UsernameFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or missing token")
			return
		}
		fn(w, r, username)
	}
}

// --- auth ---

type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var p authPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	username := strings.TrimSpace(p.Username)
	if len(username) < 3 {
		writeError(w, http.StatusBadRequest, "Username must be at least 3 characters long")
		return
	}
	if len(p.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	sess := s.store.Session()
	existing, err := sess.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "Username already taken")
		return
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not hash password")
		return
	}
	if _, err := sess.CreateUser(r.Context(), username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var p authPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if p.Username == "" || p.Password == "" {
		writeError(w, http.StatusBadRequest, "Please enter your username and password as both are compulsory")
		return
	}
	username := strings.TrimSpace(p.Username)

	u, err := s.store.Session().GetUserByUsername(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if u == nil {
		writeError(w, http.StatusUnauthorized, "User does not exist. Please sign up first")
		return
	}
	if !auth.VerifyPassword(p.Password, u.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Incorrect password. Please try again")
		return
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": token})
}

// --- messages ---

type messagePayload struct {
	Content string `json:"content"`
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, username string) {
	limit := defaultMessageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	views, err := s.chat.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	out := make([]domain.EventMessage, 0, len(views))
	for _, v := range views {
		ev := domain.NewMessageEvent(domain.EventTypeMessage, v.Message, v.Username)
		out = append(out, *ev.Message)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, username string) {
	var p messagePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := s.chat.Post(r.Context(), username, p.Content)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	metrics.MessagesTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": msg.ID})
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request, username string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}
	var p messagePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := s.chat.Edit(r.Context(), username, id, p.Content)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": msg.ID})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, username string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}

	if err := s.chat.Delete(r.Context(), username, id); err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Message deleted"})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request, username string) {
	if err := s.chat.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "All messages cleared"})
}

func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "Invalid user")
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "Message not found")
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, "You can only modify your own messages")
	default:
		s.logger.Error("chat operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
	}
}

// --- inventory ---

type inventoryItemPayload struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	MinQuantity float64 `json:"min_quantity,omitempty"`
	Location    string  `json:"location,omitempty"`
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Session().AllItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, i := range items {
		out = append(out, map[string]any{
			"id":           i.ID,
			"name":         i.Name,
			"category":     i.Category,
			"quantity":     i.Quantity,
			"unit":         i.Unit,
			"min_quantity": i.MinQuantity,
			"location":     i.Location,
			"is_low_stock": i.IsLow(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleGetLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Session().LowStockItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, i := range items {
		out = append(out, map[string]any{
			"id":           i.ID,
			"name":         i.Name,
			"category":     i.Category,
			"quantity":     i.Quantity,
			"unit":         i.Unit,
			"min_quantity": i.MinQuantity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"low_stock_items": out})
}

func (s *Server) handleAddInventoryItem(w http.ResponseWriter, r *http.Request, username string) {
	var p inventoryItemPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if p.Unit == "" {
		p.Unit = "units"
	}
	if p.MinQuantity == 0 {
		p.MinQuantity = 10.0
	}

	item, err := s.store.Session().CreateItem(r.Context(), domain.InventoryItem{
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Quantity:    p.Quantity,
		Unit:        p.Unit,
		MinQuantity: p.MinQuantity,
		Location:    p.Location,
	}, "Initial stock", nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item_id": item.ID})
}

func (s *Server) handleUpdateInventory(w http.ResponseWriter, r *http.Request, username string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item id")
		return
	}
	change, err := strconv.ParseFloat(r.URL.Query().Get("quantity_change"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "quantity_change is required")
		return
	}
	reason := r.URL.Query().Get("reason")

	txType := "add"
	if change < 0 {
		txType = "remove"
	}
	newQty, err := s.store.Session().AdjustQuantity(r.Context(), id, change, txType, reason, nil)
	if err != nil {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "new_quantity": newQty})
}

// --- suppliers ---

type supplierPayload struct {
	Name         string  `json:"name"`
	ItemName     string  `json:"item_name"`
	ContactInfo  string  `json:"contact_info,omitempty"`
	OrderURL     string  `json:"order_url,omitempty"`
	PricePerUnit float64 `json:"price_per_unit,omitempty"`
	LeadTimeDays int     `json:"lead_time_days,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

func (s *Server) handleGetSuppliers(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Session()
	var (
		suppliers []domain.Supplier
		err       error
	)
	if itemName := r.URL.Query().Get("item_name"); itemName != "" {
		suppliers, err = sess.SuppliersForItem(r.Context(), itemName)
	} else {
		suppliers, err = sess.AllSuppliers(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	out := make([]map[string]any, 0, len(suppliers))
	for _, sp := range suppliers {
		out = append(out, map[string]any{
			"id":             sp.ID,
			"name":           sp.Name,
			"item_name":      sp.ItemName,
			"contact_info":   sp.ContactInfo,
			"order_url":      sp.OrderURL,
			"price_per_unit": sp.PricePerUnit,
			"lead_time_days": sp.LeadTimeDays,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": out})
}

func (s *Server) handleAddSupplier(w http.ResponseWriter, r *http.Request, username string) {
	var p supplierPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sp, err := s.store.Session().CreateSupplier(r.Context(), domain.Supplier{
		Name:         p.Name,
		ItemName:     p.ItemName,
		ContactInfo:  p.ContactInfo,
		OrderURL:     p.OrderURL,
		PricePerUnit: p.PricePerUnit,
		LeadTimeDays: p.LeadTimeDays,
		Notes:        p.Notes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "supplier_id": sp.ID})
}

// --- agents ---

func (s *Server) handleGetAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.agents.AgentInfos()})
}

