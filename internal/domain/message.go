package domain

import (
	"strings"
	"time"
)

// BotName is the display name used for bot-authored messages in event
// payloads and message listings.
const BotName = "LLM Bot"

// TriggerMarker is the leading token that opts a chat message into bot
// processing, e.g. "#how many pencils do we have?".
const TriggerMarker = "#"

// User is a registered chat participant.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a single entry in the conversation stream. IDs are assigned at
// insertion, increase monotonically, and are never reused; ordering by ID is
// conversation order.
type Message struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"` // nil for bot-authored messages
	Content   string    `json:"content"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// TriggerContent returns the message body with the trigger marker stripped,
// and whether the message should be processed by the bot at all. A bare "#"
// with nothing after it does not count as a trigger.
func TriggerContent(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, TriggerMarker) {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, TriggerMarker))
	if rest == "" {
		return "", false
	}
	return rest, true
}
