package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/costcoplus/offline-relay/internal/domain"
)

// KindLimiters holds one token bucket per mutation kind, so a long backlog of
// one kind drained after reconnect cannot flood a single remote endpoint.
// Burst equals the rate.
type KindLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[domain.Kind]*rate.Limiter
}

// New creates KindLimiters with ratePerSec tokens per second per kind.
// A non-positive rate disables limiting.
func New(ratePerSec int) *KindLimiters {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = ratePerSec
	}
	return &KindLimiters{
		limit:    limit,
		burst:    burst,
		limiters: make(map[domain.Kind]*rate.Limiter),
	}
}

// Wait blocks until the kind's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (kl *KindLimiters) Wait(ctx context.Context, k domain.Kind) error {
	return kl.get(k).Wait(ctx)
}

// Limiters are created lazily so records of kinds this build does not know
// still pass through to the executor (which drops them).
func (kl *KindLimiters) get(k domain.Kind) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	l, ok := kl.limiters[k]
	if !ok {
		l = rate.NewLimiter(kl.limit, kl.burst)
		kl.limiters[k] = l
	}
	return l
}
