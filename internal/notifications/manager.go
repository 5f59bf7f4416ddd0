package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/heartguard/heartguard/internal/events"
)

// Level represents the severity level of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-facing notice. Transient notices (toasts)
// disappear on their own; blocking ones require acknowledgement.
type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Level     Level         `json:"level"`
	Blocking  bool          `json:"blocking"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

const defaultToastDuration = 3 * time.Second

// Manager posts notifications to the presentation layer through the broker.
type Manager struct {
	broker *events.Broker[Notification]
}

// NewManager creates a notification manager
func NewManager() *Manager {
	return &Manager{broker: events.NewBroker[Notification]()}
}

// Subscribe returns the stream of notifications for a presentation surface.
func (m *Manager) Subscribe(ctx context.Context) <-chan events.Event[Notification] {
	return m.broker.Subscribe(ctx)
}

func (m *Manager) post(message string, level Level, blocking bool, duration time.Duration) {
	m.broker.Publish(events.NotificationPosted, Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Level:     level,
		Blocking:  blocking,
		Duration:  duration,
		CreatedAt: time.Now(),
	})
}

// Toast posts a transient informational notice.
func (m *Manager) Toast(message string) {
	m.post(message, LevelInfo, false, defaultToastDuration)
}

// ToastError posts a transient failure notice.
func (m *Manager) ToastError(message string) {
	m.post(message, LevelError, false, defaultToastDuration)
}

// Alert posts a blocking explanatory prompt.
func (m *Manager) Alert(message string) {
	m.post(message, LevelWarning, true, 0)
}

// Shutdown stops delivery.
func (m *Manager) Shutdown() {
	m.broker.Shutdown()
}
