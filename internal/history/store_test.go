package history

import (
	"fmt"
	"testing"
	"time"
)

// memoryBackend is an in-process Backend for tests.
type memoryBackend struct {
	data     map[string]string
	writeErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Read(domain string) (string, bool, error) {
	payload, ok := m.data[domain]
	return payload, ok, nil
}

func (m *memoryBackend) Write(domain, payload string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data[domain] = payload
	return nil
}

func stringStore(backend Backend, capacity int, dedupe bool) *Store[string] {
	return NewStore(backend, Options[string]{
		Domain:         "test",
		Capacity:       capacity,
		DedupeOnInsert: dedupe,
		Equal:          func(a, b string) bool { return a == b },
	})
}

func TestAddPlacesNewestFirst(t *testing.T) {
	store := stringStore(newMemoryBackend(), 20, false)

	store.Add("first")
	store.Add("second")
	store.Add("third")

	records := store.List()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []string{"third", "second", "first"}
	for i, w := range want {
		if records[i].Payload != w {
			t.Errorf("records[%d] = %q, want %q", i, records[i].Payload, w)
		}
	}
}

func TestCapacityDropsOldest(t *testing.T) {
	store := stringStore(newMemoryBackend(), 3, false)

	for i := 0; i < 5; i++ {
		store.Add(fmt.Sprintf("item-%d", i))
	}

	records := store.List()
	if len(records) != 3 {
		t.Fatalf("expected capacity 3, got %d records", len(records))
	}
	if records[0].Payload != "item-4" {
		t.Errorf("newest record = %q, want item-4", records[0].Payload)
	}
	if records[2].Payload != "item-2" {
		t.Errorf("oldest surviving record = %q, want item-2", records[2].Payload)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := stringStore(newMemoryBackend(), 20, false)

	rec := store.Add("keep")
	victim := store.Add("remove")

	store.Remove(victim.ID)
	after := store.List()

	store.Remove(victim.ID)
	again := store.List()

	if len(after) != 1 || len(again) != 1 {
		t.Fatalf("expected 1 record after both removes, got %d then %d", len(after), len(again))
	}
	if again[0].ID != rec.ID {
		t.Errorf("surviving record = %s, want %s", again[0].ID, rec.ID)
	}

	// Removing an id that never existed is a no-op, not an error.
	store.Remove("no-such-id")
	if store.Len() != 1 {
		t.Errorf("expected 1 record after removing absent id, got %d", store.Len())
	}
}

func TestDedupeOnInsert(t *testing.T) {
	store := stringStore(newMemoryBackend(), 8, true)

	store.Add("cat")
	store.Add("dog")
	store.Add("cat")

	records := store.List()
	if len(records) != 2 {
		t.Fatalf("expected 2 records after dedup, got %d", len(records))
	}
	if records[0].Payload != "cat" || records[1].Payload != "dog" {
		t.Errorf("got [%q, %q], want [cat, dog]", records[0].Payload, records[1].Payload)
	}
}

func TestRoundTripRehydration(t *testing.T) {
	type message struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	}

	backend := newMemoryBackend()
	opts := Options[message]{Domain: "messages", Capacity: 20}

	store := NewStore(backend, opts)
	original := store.Add(message{
		Role:      "user",
		Content:   "你好",
		Timestamp: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	})
	store.Add(message{
		Role:      "assistant",
		Content:   "你好呀",
		Timestamp: time.Date(2025, 6, 1, 10, 30, 5, 0, time.UTC),
	})

	// A fresh store over the same backend must reconstruct the collection,
	// including correctly-typed timestamps.
	reloaded := NewStore(backend, opts)
	records := reloaded.List()
	if len(records) != 2 {
		t.Fatalf("expected 2 records after reload, got %d", len(records))
	}
	if records[1].ID != original.ID {
		t.Errorf("reloaded id = %s, want %s", records[1].ID, original.ID)
	}
	if !records[1].Payload.Timestamp.Equal(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp not rehydrated: %v", records[1].Payload.Timestamp)
	}
	if !records[1].CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("created_at not rehydrated: %v != %v", records[1].CreatedAt, original.CreatedAt)
	}
}

func TestCorruptDataTreatedAsEmpty(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["test"] = "{not json"

	store := stringStore(backend, 20, false)
	if got := store.List(); len(got) != 0 {
		t.Errorf("expected empty list for corrupt payload, got %d records", len(got))
	}

	// The store stays usable after swallowing the corruption.
	store.Add("fresh")
	if store.Len() != 1 {
		t.Errorf("expected 1 record after add, got %d", store.Len())
	}
}

func TestMalformedEntriesDroppedIndividually(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["test"] = `[
		{"id":"1700000000000","created_at":"2025-06-01T10:30:00Z","payload":"good"},
		{"id":"","created_at":"2025-06-01T10:31:00Z","payload":"missing id"},
		{"id":"1700000001000","created_at":"not-a-time","payload":"bad time"}
	]`

	store := stringStore(backend, 20, false)
	records := store.List()
	if len(records) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(records))
	}
	if records[0].Payload != "good" {
		t.Errorf("surviving payload = %q, want good", records[0].Payload)
	}
}

func TestLoadTruncatesToCapacity(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["test"] = `[
		{"id":"1700000002000","created_at":"2025-06-01T10:32:00Z","payload":"newest"},
		{"id":"1700000001000","created_at":"2025-06-01T10:31:00Z","payload":"middle"},
		{"id":"1700000000000","created_at":"2025-06-01T10:30:00Z","payload":"oldest"}
	]`

	// A lowered capacity must apply on rehydration, not only on the next add.
	store := stringStore(backend, 2, false)
	records := store.List()
	if len(records) != 2 {
		t.Fatalf("expected 2 records after reload, got %d", len(records))
	}
	if records[0].Payload != "newest" || records[1].Payload != "middle" {
		t.Errorf("got [%q, %q], want newest-first survivors", records[0].Payload, records[1].Payload)
	}
}

func TestRehydratedIDsSeedTheHighWaterMark(t *testing.T) {
	backend := newMemoryBackend()
	// An id far in the future, as if written by a machine with a fast clock.
	backend.data["test"] = `[
		{"id":"99999999999999","created_at":"2025-06-01T10:30:00Z","payload":"existing"}
	]`

	store := stringStore(backend, 20, false)
	rec := store.Add("fresh")

	if rec.ID == "99999999999999" {
		t.Fatal("fresh add reused a rehydrated id")
	}
	if rec.ID != "100000000000000" {
		t.Errorf("fresh id = %s, want the bumped high-water mark", rec.ID)
	}
}

func TestSameMillisecondIDsStayDistinct(t *testing.T) {
	store := stringStore(newMemoryBackend(), 20, false)

	a := store.Add("a")
	b := store.Add("b")
	if a.ID == b.ID {
		t.Errorf("two adds produced the same id %s", a.ID)
	}
}
