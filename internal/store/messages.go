package store

import (
	"context"
	"database/sql"
	"time"

	"stemchat/internal/domain"
)

// MessageView is a message joined with its author's username for listings
// and event payloads.
type MessageView struct {
	domain.Message
	Username string
}

// CreateMessage inserts a message and returns it with its assigned id.
// A nil userID marks the message as bot-authored input data; isBot controls
// the flag itself.
func (s *Session) CreateMessage(ctx context.Context, userID *int64, content string, isBot bool) (domain.Message, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, content, is_bot, created_at) VALUES (?, ?, ?, ?)`,
		userID, content, isBot, now,
	)
	if err != nil {
		return domain.Message{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{ID: id, UserID: userID, Content: content, IsBot: isBot, CreatedAt: now}, nil
}

// GetMessage returns the message with the given id, or nil if absent.
func (s *Session) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	var m domain.Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, is_bot, created_at FROM messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.UserID, &m.Content, &m.IsBot, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) UpdateMessageContent(ctx context.Context, id int64, content string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id)
	return err
}

func (s *Session) DeleteMessage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	return err
}

func (s *Session) ClearMessages(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	return err
}

// ListMessages returns the most recent `limit` messages in conversation
// order (ascending id), with author usernames resolved.
func (s *Session) ListMessages(ctx context.Context, limit int) ([]MessageView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, m.content, m.is_bot, m.created_at, COALESCE(u.username, '')
		 FROM messages m LEFT JOIN users u ON u.id = m.user_id
		 ORDER BY m.id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageView
	for rows.Next() {
		var v MessageView
		if err := rows.Scan(&v.ID, &v.UserID, &v.Content, &v.IsBot, &v.CreatedAt, &v.Username); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into ascending id order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PairedBotMessage locates the bot reply paired to the user message with the
// given id: the nearest bot message with a greater id such that no non-bot
// message lies strictly between the two. Returns nil when no reply is paired.
// The pairing is purely positional; no link is stored.
func (s *Session) PairedBotMessage(ctx context.Context, userMsgID int64) (*domain.Message, error) {
	var m domain.Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, is_bot, created_at FROM messages
		 WHERE id > ? AND is_bot = 1 ORDER BY id LIMIT 1`, userMsgID,
	).Scan(&m.ID, &m.UserID, &m.Content, &m.IsBot, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var interleaved int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE id > ? AND id < ? AND is_bot = 0`,
		userMsgID, m.ID,
	).Scan(&interleaved)
	if err != nil {
		return nil, err
	}
	if interleaved > 0 {
		return nil, nil
	}
	return &m, nil
}
