package history

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Record is one durable, timestamped unit in a bounded history collection.
// Records are kept newest-first.
type Record[T any] struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Payload   T         `json:"payload"`
}

// Backend abstracts the durable storage for one keyed collection. The whole
// collection is serialized as a single text value and rewritten in full on
// every mutation.
type Backend interface {
	// Read returns the serialized collection and whether any data exists.
	Read(domain string) (string, bool, error)
	// Write replaces the serialized collection.
	Write(domain string, payload string) error
}

// Options configures a Store for one domain.
type Options[T any] struct {
	// Domain keys the collection in the backend.
	Domain string
	// Capacity bounds the collection; oldest records are dropped first.
	Capacity int
	// DedupeOnInsert removes an existing record with an equal payload
	// before prepending the new one. Requires Equal.
	DedupeOnInsert bool
	// Equal is the domain's payload equality predicate.
	Equal func(a, b T) bool
}

// Store is a bounded, ordered, durable collection of records for one domain.
// List never fails: corrupt or missing durable data is treated as empty.
type Store[T any] struct {
	backend Backend
	opts    Options[T]
	logger  *log.Logger

	mu      sync.Mutex
	records []Record[T]
	loaded  bool
	lastID  int64
}

// NewStore creates a store bound to one domain of the backend. Durable data
// is read lazily on first access.
func NewStore[T any](backend Backend, opts Options[T]) *Store[T] {
	return &Store[T]{
		backend: backend,
		opts:    opts,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "history/" + opts.Domain}),
	}
}

// load rehydrates the collection from the backend. Entries that fail to
// decode are dropped individually; a corrupt collection is treated as empty.
func (s *Store[T]) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	raw, ok, err := s.backend.Read(s.opts.Domain)
	if err != nil {
		s.logger.Warn("failed to read history, starting empty", "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("corrupt history payload, starting empty", "error", err)
		return
	}

	records := make([]Record[T], 0, len(entries))
	for _, entry := range entries {
		var rec Record[T]
		if err := json.Unmarshal(entry, &rec); err != nil {
			s.logger.Warn("dropping malformed history entry", "error", err)
			continue
		}
		if rec.ID == "" {
			s.logger.Warn("dropping history entry without id")
			continue
		}
		// Seed the ID high-water mark so fresh adds stay distinct from
		// rehydrated records even under clock skew.
		if id, err := strconv.ParseInt(rec.ID, 10, 64); err == nil && id > s.lastID {
			s.lastID = id
		}
		records = append(records, rec)
	}

	// A persisted collection can exceed the cap when the configured
	// capacity was lowered since it was written.
	if s.opts.Capacity > 0 && len(records) > s.opts.Capacity {
		records = records[:s.opts.Capacity]
	}
	s.records = records
}

// persist rewrites the durable collection. Failures are logged; the
// in-memory state is already updated and stays authoritative.
func (s *Store[T]) persist() {
	data, err := json.Marshal(s.records)
	if err != nil {
		s.logger.Error("failed to serialize history", "error", err)
		return
	}
	if err := s.backend.Write(s.opts.Domain, string(data)); err != nil {
		s.logger.Error("failed to persist history", "error", err)
	}
}

// nextID returns a creation-time-derived token, bumped on collision so two
// adds in the same millisecond stay distinct and ordered.
func (s *Store[T]) nextID(now time.Time) string {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// List returns a snapshot of the collection, newest-first.
func (s *Store[T]) List() []Record[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	out := make([]Record[T], len(s.records))
	copy(out, s.records)
	return out
}

// Add prepends a new record, truncates to capacity, and persists
// synchronously before returning.
func (s *Store[T]) Add(payload T) Record[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if s.opts.DedupeOnInsert && s.opts.Equal != nil {
		kept := s.records[:0]
		for _, rec := range s.records {
			if !s.opts.Equal(rec.Payload, payload) {
				kept = append(kept, rec)
			}
		}
		s.records = kept
	}

	now := time.Now()
	rec := Record[T]{
		ID:        s.nextID(now),
		CreatedAt: now,
		Payload:   payload,
	}

	s.records = append([]Record[T]{rec}, s.records...)
	if s.opts.Capacity > 0 && len(s.records) > s.opts.Capacity {
		s.records = s.records[:s.opts.Capacity]
	}

	s.persist()
	return rec
}

// Remove filters the id out of the collection. Removing an absent id is a
// no-op.
func (s *Store[T]) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	kept := s.records[:0]
	removed := false
	for _, rec := range s.records {
		if rec.ID == id {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept

	if removed {
		s.persist()
	}
}

// Len returns the current number of records.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return len(s.records)
}
