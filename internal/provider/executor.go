package provider

import (
	"context"

	"github.com/costcoplus/offline-relay/internal/domain"
)

// Executor turns one queued mutation into exactly one remote call.
//
// A nil error means the remote API accepted the write. Failures wrap either
// domain.ErrTransientRemote (retry later) or a permanent sentinel
// (domain.ErrPermanentRemote, domain.ErrInvalidPayload, domain.ErrUnknownKind).
// Implementations never touch the queue store.
type Executor interface {
	Execute(ctx context.Context, m domain.QueuedMutation) error
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, m domain.QueuedMutation) error

func (f ExecutorFunc) Execute(ctx context.Context, m domain.QueuedMutation) error {
	return f(ctx, m)
}
