package events

import (
	"time"
)

// EventType identifies the kind of event flowing through a broker.
type EventType string

const (
	// MessageUpdated fires whenever a conversation message is created or
	// its streamed content grows.
	MessageUpdated EventType = "message.updated"

	// ConversationReset fires when the conversation is replaced wholesale
	// (history load, clear).
	ConversationReset EventType = "conversation.reset"

	// TurnCompleted fires when a streamed assistant turn finishes,
	// successfully or not.
	TurnCompleted EventType = "turn.completed"

	// NotificationPosted fires for toasts and blocking alerts.
	NotificationPosted EventType = "notification.posted"
)

// Event is one typed occurrence published to subscribers.
type Event[T any] struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   T         `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
