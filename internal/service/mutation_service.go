package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/provider"
	"github.com/costcoplus/offline-relay/internal/queue"
	"github.com/costcoplus/offline-relay/internal/worker"
)

// Drainer is the part of worker.Drainer the service drives.
type Drainer interface {
	Notify(t worker.Trigger)
	Drain(ctx context.Context) worker.DrainReport
	RetryOne(ctx context.Context, id string) (worker.Outcome, error)
}

// MutationService is the inbound side of the offline queue. Interactive
// features submit through it; it sends directly when it can and parks the
// mutation in the queue when it cannot. HTTP handlers depend on this
// service, never on the queue or drainer directly.
type MutationService struct {
	q       *queue.Store
	exec    provider.Executor
	drainer Drainer
	online  func(ctx context.Context) bool
	logger  *zap.Logger
}

func NewMutationService(
	q *queue.Store,
	exec provider.Executor,
	drainer Drainer,
	online func(ctx context.Context) bool,
	logger *zap.Logger,
) *MutationService {
	return &MutationService{q: q, exec: exec, drainer: drainer, online: online, logger: logger}
}

// Submit decodes and validates req, then either sends it or queues it.
//
// Invalid payloads are rejected here and never queued. A direct send is only
// attempted while online and while nothing older is waiting, so queued
// mutations keep their order. Offline or transient failure queues the
// mutation; a permanent remote rejection is returned to the caller. Every
// queued mutation submitted while online asks the drainer for a cycle.
func (s *MutationService) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, req.Kind)
	}
	p, err := domain.DecodePayload(req.Kind, req.Payload)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("kind", string(req.Kind)))

	pending, err := s.q.Len(ctx)
	if err != nil {
		return nil, err
	}

	sendFailed := false
	if pending == 0 && s.online(ctx) {
		err := s.exec.Execute(ctx, domain.QueuedMutation{Kind: req.Kind, Payload: p})
		switch {
		case err == nil:
			return &domain.SubmitResult{Sent: true}, nil
		case domain.IsPermanent(err):
			return nil, err
		}
		log.Warn("direct send failed, queueing for later", zap.Error(err))
		sendFailed = true
	}

	m, err := s.q.Enqueue(ctx, req.Kind, p)
	if err != nil {
		return nil, fmt.Errorf("queue mutation: %w", err)
	}
	log.Info("mutation queued", zap.String("mutation_id", m.ID), zap.Int("pending", pending+1))

	if pending > 0 || sendFailed {
		// online but not sent: older records are waiting, or the remote
		// failed transiently. Either way a cycle has to pick it up.
		s.drainer.Notify(worker.TriggerSubmit)
	}
	return &domain.SubmitResult{Queued: true, Mutation: &m}, nil
}

// Pending returns a snapshot of the queue, oldest first.
func (s *MutationService) Pending(ctx context.Context) ([]domain.QueuedMutation, error) {
	return s.q.List(ctx)
}

// Get returns one queued record.
func (s *MutationService) Get(ctx context.Context, id string) (domain.QueuedMutation, error) {
	return s.q.Get(ctx, id)
}

// Discard removes one record without sending it. Unknown ids are not an error.
func (s *MutationService) Discard(ctx context.Context, id string) error {
	if err := s.q.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("queued mutation discarded", zap.String("mutation_id", id))
	return nil
}

// Clear empties the queue.
func (s *MutationService) Clear(ctx context.Context) error {
	if err := s.q.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("offline queue cleared")
	return nil
}

// Drain runs a drain cycle now and waits for it.
func (s *MutationService) Drain(ctx context.Context) worker.DrainReport {
	return s.drainer.Drain(ctx)
}

// Retry sends one queued record now, outside a drain cycle.
func (s *MutationService) Retry(ctx context.Context, id string) (worker.Outcome, error) {
	return s.drainer.RetryOne(ctx, id)
}
