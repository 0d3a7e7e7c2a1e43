package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/ratelimiter"
)

func TestKindLimiters_BurstThenWait(t *testing.T) {
	kl := ratelimiter.New(2)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := kl.Wait(ctx, domain.KindCreatePost); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("burst tokens should be granted immediately")
	}

	// a different kind has its own bucket
	if err := kl.Wait(ctx, domain.KindCreateComment); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := kl.Wait(ctx, domain.KindCreatePost); err == nil {
		t.Fatal("expected exhausted bucket to block past the deadline")
	}
}

func TestKindLimiters_Disabled(t *testing.T) {
	kl := ratelimiter.New(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		if err := kl.Wait(ctx, "anything"); err != nil {
			t.Fatalf("unlimited limiter blocked: %v", err)
		}
	}
}
