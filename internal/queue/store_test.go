package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/queue"
	"github.com/costcoplus/offline-relay/internal/storage"
)

func post(content string) domain.CreatePost {
	return domain.CreatePost{WarehouseID: 5, Content: content, PostTypeID: 2}
}

func newStore(kv storage.KV) *queue.Store {
	return queue.New(kv, queue.DefaultKey, queue.Hooks{})
}

func TestStore_EnqueueListFIFO(t *testing.T) {
	ctx := context.Background()
	s := newStore(storage.NewMemory())

	var ids []string
	for _, c := range []string{"e1", "e2", "e3"} {
		m, err := s.Enqueue(ctx, domain.KindCreatePost, post(c))
		if err != nil {
			t.Fatalf("enqueue %s: %v", c, err)
		}
		if m.ID == "" || m.EnqueuedAt.IsZero() {
			t.Fatalf("expected id and timestamp, got %+v", m)
		}
		ids = append(ids, m.ID)
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	seen := map[string]bool{}
	for i, m := range items {
		if m.ID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], m.ID)
		}
		if seen[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestStore_ListReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(storage.NewMemory())
	_, _ = s.Enqueue(ctx, domain.KindCreatePost, post("a"))

	snap, _ := s.List(ctx)
	snap[0].ID = "mutated"

	again, _ := s.List(ctx)
	if again[0].ID == "mutated" {
		t.Fatal("List must return a copy")
	}
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(storage.NewMemory())

	a, _ := s.Enqueue(ctx, domain.KindCreatePost, post("a"))
	b, _ := s.Enqueue(ctx, domain.KindCreatePost, post("b"))

	if err := s.Remove(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, a.ID); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
	if err := s.Remove(ctx, "never-existed"); err != nil {
		t.Fatalf("removing unknown id should be a no-op, got %v", err)
	}

	items, _ := s.List(ctx)
	if len(items) != 1 || items[0].ID != b.ID {
		t.Fatalf("expected only %s to remain, got %+v", b.ID, items)
	}
}

// A record enqueued right before the process dies must be listed by a fresh
// process opening the same database file.
func TestStore_CrashSafety(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	kv1, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	m, err := newStore(kv1).Enqueue(ctx, domain.KindCreatePost, post("在庫あります"))
	if err != nil {
		t.Fatal(err)
	}
	kv1.Close()

	kv2, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer kv2.Close()

	items, err := newStore(kv2).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != m.ID {
		t.Fatalf("expected record %s after restart, got %+v", m.ID, items)
	}
	p, ok := items[0].Payload.(domain.CreatePost)
	if !ok || p.Content != "在庫あります" {
		t.Fatalf("payload not restored: %#v", items[0].Payload)
	}
}

func TestStore_LazyLoad(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, queue.DefaultKey, []byte(`[{"id":"p1","kind":"create_comment","payload":{"postId":9,"comment":"hi"},"enqueuedAt":"2024-05-01T09:00:00Z"}]`))

	s := newStore(kv)
	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 preloaded record, got %d", n)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := got.Payload.(domain.CreateComment); !ok || c.PostID != 9 {
		t.Fatalf("unexpected payload %#v", got.Payload)
	}

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_WriteFailureLeavesQueueIntact(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newStore(kv)

	a, _ := s.Enqueue(ctx, domain.KindCreatePost, post("a"))

	kv.SetErr = errors.New("disk full")

	if _, err := s.Enqueue(ctx, domain.KindCreatePost, post("b")); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage on enqueue, got %v", err)
	}
	if err := s.Remove(ctx, a.ID); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage on remove, got %v", err)
	}

	kv.SetErr = nil
	items, _ := s.List(ctx)
	if len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("expected queue unchanged after failed writes, got %+v", items)
	}

	// the backend must still hold the last good list
	fresh := newStore(kv)
	n, _ := fresh.Len(ctx)
	if n != 1 {
		t.Fatalf("expected 1 persisted record, got %d", n)
	}
}

func TestStore_LoadFailure(t *testing.T) {
	kv := storage.NewMemory()
	kv.GetErr = errors.New("io error")

	if _, err := newStore(kv).List(context.Background()); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestStore_CorruptListIsStorageError(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, queue.DefaultKey, []byte(`{not json`))

	if _, err := newStore(kv).List(ctx); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newStore(kv)

	_, _ = s.Enqueue(ctx, domain.KindCreatePost, post("a"))
	_, _ = s.Enqueue(ctx, domain.KindCreatePost, post("b"))

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
	if n, _ := newStore(kv).Len(ctx); n != 0 {
		t.Fatalf("expected persisted queue to be empty, got %d", n)
	}
}

func TestStore_Hooks(t *testing.T) {
	ctx := context.Background()
	var enqueued []domain.Kind
	var depth int

	s := queue.New(storage.NewMemory(), "", queue.Hooks{
		OnEnqueued: func(k domain.Kind) { enqueued = append(enqueued, k) },
		OnDepth:    func(d int) { depth = d },
	})

	m, _ := s.Enqueue(ctx, domain.KindCreateComment, domain.CreateComment{PostID: 1, Comment: "x"})
	_, _ = s.Enqueue(ctx, domain.KindCreatePost, post("y"))
	if depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}
	_ = s.Remove(ctx, m.ID)
	if depth != 1 {
		t.Fatalf("expected depth 1, got %d", depth)
	}
	if len(enqueued) != 2 || enqueued[0] != domain.KindCreateComment {
		t.Fatalf("unexpected enqueue hook calls %v", enqueued)
	}
}
