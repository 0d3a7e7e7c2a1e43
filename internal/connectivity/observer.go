// Package connectivity reports whether the remote API is reachable and
// notifies subscribers when that changes.
package connectivity

import (
	"context"
	"sync"
)

// Observer is the reachability capability the drain worker consumes.
//
// OnChange callbacks may fire more than once for the same logical transition,
// or never; consumers must tolerate both.
type Observer interface {
	IsOnline(ctx context.Context) bool
	OnChange(fn func(online bool)) (dispose func())
}

// Broadcaster tracks the last known state and fans transitions out to
// subscribers. It is embedded by concrete observers.
type Broadcaster struct {
	mu     sync.Mutex
	known  bool
	online bool
	nextID int
	subs   map[int]func(bool)
}

// OnChange registers fn and returns a disposer. Calling the disposer more
// than once is safe.
func (b *Broadcaster) OnChange(fn func(online bool)) (dispose func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(bool))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Set records a new state and notifies subscribers if it differs from the
// last one (the first Set always notifies). Callbacks run on the caller's
// goroutine, outside the lock.
func (b *Broadcaster) Set(online bool) {
	b.mu.Lock()
	if b.known && b.online == online {
		b.mu.Unlock()
		return
	}
	b.known = true
	b.online = online
	fns := make([]func(bool), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Last returns the last state passed to Set, and whether there was one.
func (b *Broadcaster) Last() (online, known bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online, b.known
}
