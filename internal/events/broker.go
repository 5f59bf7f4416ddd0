package events

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const defaultBufferSize = 64

// Broker implements a generic publish-subscribe broker with type safety.
// Publishing never blocks: a subscriber whose channel is full misses the
// event and a warning is logged.
type Broker[T any] struct {
	subs       map[chan Event[T]]string
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	logger     *log.Logger
}

// NewBroker creates a new broker with default settings
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs:       make(map[chan Event[T]]string),
		done:       make(chan struct{}),
		bufferSize: defaultBufferSize,
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "events"}),
	}
}

// Publish publishes an event to all subscribers
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	select {
	case <-b.done:
		return // Broker is shut down
	default:
	}

	event := Event[T]{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, id := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"subscriber", id, "event", event.ID, "type", event.Type)
		}
	}
}

// Subscribe creates a new subscription that lives until ctx is done.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event[T], b.bufferSize)
	b.subs[ch] = uuid.New().String()

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()

	return ch
}

func (b *Broker[T]) unsubscribe(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[ch]; exists {
		delete(b.subs, ch)
		close(ch)
	}
}

// Shutdown gracefully shuts down the broker
func (b *Broker[T]) Shutdown() {
	select {
	case <-b.done: // Already closed
		return
	default:
		close(b.done)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
