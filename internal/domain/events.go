package domain

// Event is a chat lifecycle event fanned out to connected listeners.
// Delivery is best-effort: no retry, no ordering guarantee across events
// originating from different concurrent background units.
type Event struct {
	Type      string        `json:"type"`
	Message   *EventMessage `json:"message,omitempty"`
	MessageID int64         `json:"message_id,omitempty"`
}

// EventMessage is the wire form of a message inside an event payload.
type EventMessage struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	IsBot     bool   `json:"is_bot"`
	CreatedAt string `json:"created_at"`
}

const (
	EventTypeMessage        = "message"
	EventTypeMessageEdited  = "message_edited"
	EventTypeMessageDeleted = "message_deleted"
)

// NewMessageEvent builds a "message" or "message_edited" event for m.
// Bot-authored messages are labeled with BotName regardless of username.
func NewMessageEvent(eventType string, m Message, username string) Event {
	name := username
	if m.IsBot {
		name = BotName
	}
	return Event{
		Type: eventType,
		Message: &EventMessage{
			ID:        m.ID,
			Username:  name,
			Content:   m.Content,
			IsBot:     m.IsBot,
			CreatedAt: m.CreatedAt.Format("2006-01-02 15:04:05"),
		},
	}
}

// NewDeletedEvent builds a "message_deleted" event for the given message id.
func NewDeletedEvent(messageID int64) Event {
	return Event{Type: EventTypeMessageDeleted, MessageID: messageID}
}

// Broadcaster fans events out to connected listeners. Implementations must
// not block the caller; a slow or gone listener is the listener's problem.
type Broadcaster interface {
	Broadcast(ev Event)
}
