// Package queue implements the persistent offline mutation queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/storage"
)

// DefaultKey is the storage key the queue is persisted under.
const DefaultKey = "costco-plus-offline-queue"

// Hooks carries optional callbacks injected by main for metrics.
type Hooks struct {
	OnEnqueued func(kind domain.Kind)
	OnDepth    func(depth int)
}

// Store is the durable FIFO of pending mutations.
//
// The full list is serialized as one JSON array under a single key. Every
// mutating call writes the new list to the backend before the in-memory view
// changes, so a failed write leaves the queue exactly as it was and a
// successful Enqueue is on disk by the time it returns.
type Store struct {
	kv    storage.KV
	key   string
	hooks Hooks
	now   func() time.Time

	mu     sync.Mutex
	loaded bool
	items  []domain.QueuedMutation
}

func New(kv storage.KV, key string, hooks Hooks) *Store {
	if key == "" {
		key = DefaultKey
	}
	if hooks.OnEnqueued == nil {
		hooks.OnEnqueued = func(domain.Kind) {}
	}
	if hooks.OnDepth == nil {
		hooks.OnDepth = func(int) {}
	}
	return &Store{kv: kv, key: key, hooks: hooks, now: time.Now}
}

// Enqueue appends a new record for kind/payload and returns it.
// The payload is stored as given; validation is the caller's job so that a
// malformed record still reaches the drain path and is dropped there.
func (s *Store) Enqueue(ctx context.Context, kind domain.Kind, payload domain.Payload) (domain.QueuedMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return domain.QueuedMutation{}, err
	}

	m := domain.QueuedMutation{
		ID:         s.newIDLocked(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: s.now().UTC(),
	}

	next := make([]domain.QueuedMutation, len(s.items), len(s.items)+1)
	copy(next, s.items)
	next = append(next, m)

	if err := s.persistLocked(ctx, next); err != nil {
		return domain.QueuedMutation{}, err
	}
	s.items = next

	s.hooks.OnEnqueued(kind)
	s.hooks.OnDepth(len(s.items))
	return m, nil
}

// List returns a snapshot of the queue in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.QueuedMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.QueuedMutation, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Len returns the number of pending records.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

// Get returns the record with id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.QueuedMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return domain.QueuedMutation{}, err
	}
	for _, m := range s.items {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.QueuedMutation{}, domain.ErrNotFound
}

// Remove deletes the record with id. Removing an absent id is a no-op so
// duplicate or overlapping drains cannot fail on each other.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return err
	}

	idx := -1
	for i, m := range s.items {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	next := make([]domain.QueuedMutation, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)

	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.items = next
	s.hooks.OnDepth(len(s.items))
	return nil
}

// Clear empties the queue. Only used for an explicit user reset.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("%w: clear queue: %w", domain.ErrStorage, err)
	}
	s.items = nil
	s.loaded = true
	s.hooks.OnDepth(0)
	return nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, domain.ErrNotFound) {
		s.items = nil
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load queue: %w", domain.ErrStorage, err)
	}

	var items []domain.QueuedMutation
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: decode queue: %w", domain.ErrStorage, err)
	}
	s.items = items
	s.loaded = true
	s.hooks.OnDepth(len(s.items))
	return nil
}

func (s *Store) persistLocked(ctx context.Context, items []domain.QueuedMutation) error {
	if items == nil {
		items = []domain.QueuedMutation{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode queue: %w", domain.ErrStorage, err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: persist queue: %w", domain.ErrStorage, err)
	}
	return nil
}

// newIDLocked returns a UUIDv7: millisecond timestamp prefix plus random
// bits, so ids sort by creation time and never collide within a tick.
func (s *Store) newIDLocked() string {
	for {
		id := newID()
		if !s.hasLocked(id) {
			return id
		}
	}
}

func (s *Store) hasLocked(id string) bool {
	for _, m := range s.items {
		if m.ID == id {
			return true
		}
	}
	return false
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
