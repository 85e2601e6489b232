// Package chat owns the message lifecycle: posting, editing, deleting, the
// trigger that spawns a background agent reply, and the positional pairing
// between a user message and the bot reply it produced.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stemchat/internal/agent"
	"stemchat/internal/domain"
	"stemchat/internal/metrics"
	"stemchat/internal/store"
)

var (
	ErrUnknownUser = errors.New("unknown user")
	ErrNotFound    = errors.New("message not found")
	// ErrForbidden is returned for edits or deletes of bot messages or of
	// another user's messages.
	ErrForbidden = errors.New("you can only modify your own messages")
)

// Router routes a triggered message to an agent and returns its response.
// *agent.Router satisfies it.
type Router interface {
	RouteMessage(ctx context.Context, text string, rctx domain.RouteContext, s agent.Store) domain.RouteResult
}

// Service coordinates message persistence, event broadcast, and background
// reply units. Each reply unit runs on its own storage session and holds a
// cancellation handle keyed by the triggering message id, so a later edit or
// delete of that message can abort an in-flight reply.
type Service struct {
	store  *store.Store
	router Router
	bus    domain.Broadcaster
	logger *slog.Logger

	// replyTimeout bounds one background reply unit end to end.
	replyTimeout time.Duration

	mu      sync.Mutex
	pending map[int64]*replyUnit
	wg      sync.WaitGroup
}

// replyUnit is one in-flight background reply, identified by pointer so a
// finishing unit only removes its own handle.
type replyUnit struct {
	cancel context.CancelFunc
}

func NewService(st *store.Store, router Router, bus domain.Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        st,
		router:       router,
		bus:          bus,
		logger:       logger,
		replyTimeout: 2 * time.Minute,
		pending:      make(map[int64]*replyUnit),
	}
}

// List returns up to limit recent messages in chronological order.
func (s *Service) List(ctx context.Context, limit int) ([]store.MessageView, error) {
	return s.store.Session().ListMessages(ctx, limit)
}

// Clear removes every message. Pending reply units are cancelled so they do
// not repopulate the cleared room.
func (s *Service) Clear(ctx context.Context) error {
	s.cancelAll()
	return s.store.Session().ClearMessages(ctx)
}

// Post stores a user message, broadcasts it, and, when the content carries
// the trigger marker, spawns a background reply unit for it.
func (s *Service) Post(ctx context.Context, username, content string) (domain.Message, error) {
	sess := s.store.Session()
	u, err := sess.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.Message{}, err
	}
	if u == nil {
		return domain.Message{}, ErrUnknownUser
	}

	msg, err := sess.CreateMessage(ctx, &u.ID, content, false)
	if err != nil {
		return domain.Message{}, err
	}
	s.bus.Broadcast(domain.NewMessageEvent(domain.EventTypeMessage, msg, username))

	if actual, ok := domain.TriggerContent(content); ok {
		s.spawnReply(msg.ID, actual, username)
	}
	return msg, nil
}

// Edit replaces a message's content. The paired bot reply, if one exists, is
// deleted: it answered text that no longer exists. Any in-flight reply unit
// for this message is cancelled first. A trigger in the new content spawns a
// fresh reply unit.
func (s *Service) Edit(ctx context.Context, username string, messageID int64, content string) (domain.Message, error) {
	sess := s.store.Session()
	msg, err := s.ownedMessage(ctx, sess, username, messageID)
	if err != nil {
		return domain.Message{}, err
	}

	s.cancel(messageID)

	var deletedBotID int64
	if bot, err := sess.PairedBotMessage(ctx, messageID); err != nil {
		return domain.Message{}, err
	} else if bot != nil {
		if err := sess.DeleteMessage(ctx, bot.ID); err != nil {
			return domain.Message{}, err
		}
		deletedBotID = bot.ID
	}

	if err := sess.UpdateMessageContent(ctx, messageID, content); err != nil {
		return domain.Message{}, err
	}
	msg.Content = content

	s.bus.Broadcast(domain.NewMessageEvent(domain.EventTypeMessageEdited, *msg, username))
	if deletedBotID != 0 {
		s.bus.Broadcast(domain.NewDeletedEvent(deletedBotID))
	}

	if actual, ok := domain.TriggerContent(content); ok {
		s.spawnReply(messageID, actual, username)
	}
	return *msg, nil
}

// Delete removes a message and its paired bot reply. The user message
// deletion is broadcast before the bot reply deletion.
func (s *Service) Delete(ctx context.Context, username string, messageID int64) error {
	sess := s.store.Session()
	if _, err := s.ownedMessage(ctx, sess, username, messageID); err != nil {
		return err
	}

	s.cancel(messageID)

	var deletedBotID int64
	if bot, err := sess.PairedBotMessage(ctx, messageID); err != nil {
		return err
	} else if bot != nil {
		if err := sess.DeleteMessage(ctx, bot.ID); err != nil {
			return err
		}
		deletedBotID = bot.ID
	}

	if err := sess.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.bus.Broadcast(domain.NewDeletedEvent(messageID))
	if deletedBotID != 0 {
		s.bus.Broadcast(domain.NewDeletedEvent(deletedBotID))
	}
	return nil
}

// ownedMessage loads a message and enforces ownership: bot messages and other
// users' messages cannot be modified.
func (s *Service) ownedMessage(ctx context.Context, sess *store.Session, username string, messageID int64) (*domain.Message, error) {
	u, err := sess.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	msg, err := sess.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	if msg.IsBot || msg.UserID == nil || *msg.UserID != u.ID {
		return nil, ErrForbidden
	}
	return msg, nil
}

// spawnReply starts a background reply unit for the given triggering message.
// The unit owns its storage session and registers a cancellation handle so a
// later edit or delete of the trigger aborts it before it writes the reply.
func (s *Service) spawnReply(messageID int64, content, username string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.replyTimeout)
	unit := &replyUnit{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.pending[messageID]; ok {
		prev.cancel()
	}
	s.pending[messageID] = unit
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(messageID, unit)
		defer cancel()

		sess := s.store.Session()
		rctx := domain.RouteContext{Username: username, Timestamp: time.Now().Unix()}
		result := s.router.RouteMessage(ctx, content, rctx, sess)

		if ctx.Err() != nil {
			s.logger.Debug("reply unit cancelled", "message_id", messageID)
			return
		}

		botMsg, err := sess.CreateMessage(ctx, nil, result.Response, true)
		if err != nil {
			s.logger.Error("storing bot reply failed", "message_id", messageID, "error", err)
			return
		}
		metrics.BotRepliesTotal.Inc()
		s.logger.Info("bot reply stored",
			"message_id", messageID, "bot_message_id", botMsg.ID,
			"agent", result.AgentUsed, "confidence", result.Confidence)
		s.bus.Broadcast(domain.NewMessageEvent(domain.EventTypeMessage, botMsg, ""))
	}()
}

// cancel aborts the pending reply unit for a message, if any.
func (s *Service) cancel(messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.pending[messageID]; ok {
		u.cancel()
		delete(s.pending, messageID)
	}
}

// release removes a handle only if it still belongs to this unit; a newer
// unit for the same message keeps its own handle.
func (s *Service) release(messageID int64, unit *replyUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.pending[messageID]; ok && u == unit {
		delete(s.pending, messageID)
	}
}

func (s *Service) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.pending {
		u.cancel()
		delete(s.pending, id)
	}
}

// Close cancels all pending reply units and waits for them to drain.
func (s *Service) Close() {
	s.cancelAll()
	s.wg.Wait()
}

// Wait blocks until all in-flight reply units finish. Used by tests and
// graceful shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
