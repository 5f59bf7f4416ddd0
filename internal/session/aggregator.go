package session

import (
	"sync"
	"time"
)

// StreamFailureApology replaces the streamed content when the provider
// fails mid-turn. It is the only error text the streaming path ever shows.
const StreamFailureApology = "哎呀，信号好像迷路了，请稍后再试一试哦。"

// Publisher receives every republished snapshot of the in-progress message.
type Publisher func(msg Message)

// Aggregator turns a sequence of text fragments into a single growing
// message. The placeholder message is published on construction, before the
// first fragment can possibly arrive, so the UI always has an assistant turn
// to anchor its pending indicator on.
type Aggregator struct {
	mu      sync.Mutex
	msg     Message
	publish Publisher
	final   bool
}

// NewAggregator creates the empty placeholder message and publishes it.
func NewAggregator(id string, publish Publisher) *Aggregator {
	a := &Aggregator{
		msg: Message{
			ID:        id,
			Role:      RoleAssistant,
			Timestamp: time.Now(),
		},
		publish: publish,
	}
	a.publish(a.msg)
	return a
}

// OnFragment appends text in delivery order and republishes the message.
func (a *Aggregator) OnFragment(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final {
		return
	}
	a.msg.Content += text
	a.publish(a.msg)
}

// Complete finalizes the message; no further mutation is permitted.
func (a *Aggregator) Complete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.final = true
}

// Fail finalizes the message with the fixed apology instead of whatever
// content had accumulated.
func (a *Aggregator) Fail() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final {
		return
	}
	a.final = true
	a.msg.Content = StreamFailureApology
	a.publish(a.msg)
}

// Message returns the current snapshot.
func (a *Aggregator) Message() Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msg
}
