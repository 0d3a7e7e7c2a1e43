package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/costcoplus/offline-relay/internal/connectivity"
	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/provider"
	"github.com/costcoplus/offline-relay/internal/ratelimiter"
)

// Queue is the subset of the persistent queue store the drainer needs.
type Queue interface {
	List(ctx context.Context) ([]domain.QueuedMutation, error)
	Get(ctx context.Context, id string) (domain.QueuedMutation, error)
	Remove(ctx context.Context, id string) error
}

// Trigger names what started a drain cycle.
type Trigger string

const (
	TriggerConnectivity Trigger = "connectivity"
	TriggerManual       Trigger = "manual"
	TriggerSchedule     Trigger = "schedule"
	TriggerSubmit       Trigger = "submit"
	// TriggerRerun is queued when a trigger arrived while a cycle was
	// running, so records enqueued meanwhile are not left waiting.
	TriggerRerun Trigger = "rerun"
)

// State is the drainer's state machine: Idle <-> Draining, or Idle <->
// Retrying while a single record is sent through RetryOne.
type State int32

const (
	StateIdle State = iota
	StateDraining
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateDraining:
		return "draining"
	case StateRetrying:
		return "retrying"
	}
	return "idle"
}

// Outcome of one record.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeRetained Outcome = "retained"
	OutcomeDropped  Outcome = "dropped"
)

// DrainReport summarises one cycle. It exists for logs, metrics and tests;
// nothing about a background cycle is returned as an error.
type DrainReport struct {
	Trigger   Trigger       `json:"trigger"`
	Skipped   bool          `json:"skipped"`
	Reason    string        `json:"reason,omitempty"`
	Attempted int           `json:"attempted"`
	Sent      int           `json:"sent"`
	Retained  int           `json:"retained"`
	Dropped   int           `json:"dropped"`
	Duration  time.Duration `json:"duration"`
}

// MetricHooks carries the metric callback functions injected by main.
type MetricHooks struct {
	OnSent     func(kind domain.Kind, latency time.Duration)
	OnRetained func(kind domain.Kind)
	OnDropped  func(kind domain.Kind)
	OnCycle    func(report DrainReport)
}

// DrainerConfig holds the drainer's optional collaborators.
type DrainerConfig struct {
	// Limiter paces outbound calls per kind. Nil means unlimited.
	Limiter *ratelimiter.KindLimiters
	// Online gates manual and scheduled cycles. Connectivity-triggered
	// cycles skip the check since the event already says online.
	Online func(ctx context.Context) bool
	// MinInterval is the minimum spacing between queued (non-manual)
	// cycles. Zero disables the throttle.
	MinInterval time.Duration
}

// Drainer replays the offline queue against the remote API.
//
// At most one cycle runs at a time. The in-progress flag is explicit so that
// a connectivity callback firing again while a cycle is suspended on a remote
// call is ignored rather than starting a second, overlapping walk of the
// queue.
type Drainer struct {
	q        Queue
	exec     provider.Executor
	limiter  *ratelimiter.KindLimiters
	online   func(ctx context.Context) bool
	throttle *rate.Limiter
	logger   *zap.Logger
	hooks    MetricHooks

	draining atomic.Bool
	retrying atomic.Bool
	rerun    atomic.Bool
	triggers chan Trigger
}

func NewDrainer(q Queue, exec provider.Executor, cfg DrainerConfig, logger *zap.Logger, hooks MetricHooks) *Drainer {
	if hooks.OnSent == nil {
		hooks.OnSent = func(domain.Kind, time.Duration) {}
	}
	if hooks.OnRetained == nil {
		hooks.OnRetained = func(domain.Kind) {}
	}
	if hooks.OnDropped == nil {
		hooks.OnDropped = func(domain.Kind) {}
	}
	if hooks.OnCycle == nil {
		hooks.OnCycle = func(DrainReport) {}
	}

	throttle := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		throttle = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &Drainer{
		q:        q,
		exec:     exec,
		limiter:  cfg.Limiter,
		online:   cfg.Online,
		throttle: throttle,
		logger:   logger,
		hooks:    hooks,
		triggers: make(chan Trigger, 1),
	}
}

// State reports whether a cycle or a single-record retry is running.
func (d *Drainer) State() State {
	if !d.draining.Load() {
		return StateIdle
	}
	if d.retrying.Load() {
		return StateRetrying
	}
	return StateDraining
}

// Watch subscribes the drainer to obs: every online event queues a cycle.
// The returned function unsubscribes.
func (d *Drainer) Watch(obs connectivity.Observer) (dispose func()) {
	return obs.OnChange(func(online bool) {
		if online {
			d.Notify(TriggerConnectivity)
		}
	})
}

// Notify asks Run to start a cycle. It never blocks. Triggers arriving while
// a cycle is running collapse into one follow-up cycle queued when it ends;
// triggers arriving while another is already waiting are dropped.
func (d *Drainer) Notify(t Trigger) {
	if d.draining.Load() {
		d.rerun.Store(true)
		// the cycle may have finished between the two loads and missed the flag
		if d.draining.Load() {
			d.logger.Debug("drain in progress, follow-up cycle requested", zap.String("trigger", string(t)))
			return
		}
	}
	d.enqueueTrigger(t)
}

func (d *Drainer) enqueueTrigger(t Trigger) {
	select {
	case d.triggers <- t:
	default:
		d.logger.Debug("drain already pending, trigger coalesced", zap.String("trigger", string(t)))
	}
}

// Run serves queued triggers until ctx is cancelled. Cycles started here are
// spaced at least MinInterval apart.
func (d *Drainer) Run(ctx context.Context) {
	d.logger.Info("drain worker started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("drain worker stopping")
			return
		case t := <-d.triggers:
			if err := d.throttle.Wait(ctx); err != nil {
				// ctx cancelled while waiting, shutting down
				return
			}
			d.tryCycle(ctx, t)
		}
	}
}

// Drain runs one cycle now on the caller's goroutine, bypassing the throttle.
// If a cycle is already running the report is marked skipped.
func (d *Drainer) Drain(ctx context.Context) DrainReport {
	return d.tryCycle(ctx, TriggerManual)
}

// RetryOne executes a single record outside a cycle, for a "send this one
// now" affordance. It shares the in-progress flag with cycles so a record is
// never in flight twice.
func (d *Drainer) RetryOne(ctx context.Context, id string) (Outcome, error) {
	if !d.draining.CompareAndSwap(false, true) {
		return "", domain.ErrDrainInProgress
	}
	d.retrying.Store(true)
	defer d.release()
	defer d.retrying.Store(false)

	m, err := d.q.Get(ctx, id)
	if err != nil {
		return "", err
	}

	outcome, execErr := d.process(ctx, m)
	if outcome == OutcomeRetained {
		return outcome, execErr
	}
	return outcome, nil
}

func (d *Drainer) tryCycle(ctx context.Context, t Trigger) DrainReport {
	if !d.draining.CompareAndSwap(false, true) {
		d.logger.Debug("drain in progress, cycle skipped", zap.String("trigger", string(t)))
		if t != TriggerManual {
			d.rerun.Store(true)
			if !d.draining.Load() && d.rerun.Swap(false) {
				d.enqueueTrigger(TriggerRerun)
			}
		}
		return DrainReport{Trigger: t, Skipped: true, Reason: "in progress"}
	}
	defer d.release()

	report := d.cycle(ctx, t)
	d.hooks.OnCycle(report)
	return report
}

// release clears the in-progress flag and queues the follow-up cycle
// requested while it was held.
func (d *Drainer) release() {
	d.draining.Store(false)
	if d.rerun.Swap(false) {
		d.enqueueTrigger(TriggerRerun)
	}
}

// cycle walks a snapshot of the queue taken at start, in FIFO order, one
// record at a time. Records enqueued meanwhile wait for the next cycle.
func (d *Drainer) cycle(ctx context.Context, t Trigger) DrainReport {
	start := time.Now()
	report := DrainReport{Trigger: t}
	log := d.logger.With(zap.String("trigger", string(t)))

	if t != TriggerConnectivity && d.online != nil && !d.online(ctx) {
		report.Skipped = true
		report.Reason = "offline"
		log.Debug("device offline, drain skipped")
		return report
	}

	snapshot, err := d.q.List(ctx)
	if err != nil {
		report.Skipped = true
		report.Reason = "storage"
		log.Error("failed to load offline queue", zap.Error(err))
		return report
	}
	if len(snapshot) == 0 {
		report.Duration = time.Since(start)
		return report
	}

	log.Info("drain started", zap.Int("pending", len(snapshot)))

	for _, m := range snapshot {
		if ctx.Err() != nil {
			// shutting down; whatever is left stays queued
			break
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx, m.Kind); err != nil {
				break
			}
		}

		report.Attempted++
		outcome, _ := d.process(ctx, m)
		switch outcome {
		case OutcomeSent:
			report.Sent++
		case OutcomeDropped:
			report.Dropped++
		case OutcomeRetained:
			report.Retained++
		}
	}

	report.Duration = time.Since(start)
	log.Info("drain finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("sent", report.Sent),
		zap.Int("retained", report.Retained),
		zap.Int("dropped", report.Dropped),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// process executes one record and applies the removal rule. The executor
// error is returned for RetryOne; cycles ignore it.
func (d *Drainer) process(ctx context.Context, m domain.QueuedMutation) (Outcome, error) {
	log := d.logger.With(
		zap.String("mutation_id", m.ID),
		zap.String("kind", string(m.Kind)),
	)

	start := time.Now()
	err := d.exec.Execute(ctx, m)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		d.remove(ctx, log, m.ID)
		d.hooks.OnSent(m.Kind, elapsed)
		log.Info("queued mutation sent", zap.Duration("latency", elapsed))
		return OutcomeSent, nil

	case domain.IsPermanent(err):
		// Cannot succeed on retry; drop it so it does not block forever.
		d.remove(ctx, log, m.ID)
		d.hooks.OnDropped(m.Kind)
		log.Warn("queued mutation dropped",
			zap.Error(err),
			zap.Time("enqueued_at", m.EnqueuedAt),
		)
		return OutcomeDropped, err

	default:
		d.hooks.OnRetained(m.Kind)
		log.Warn("queued mutation kept for retry", zap.Error(err))
		return OutcomeRetained, fmt.Errorf("execute %s: %w", m.ID, err)
	}
}

// remove failures are logged only: the record stays queued and will be sent
// again on the next cycle (at-least-once).
func (d *Drainer) remove(ctx context.Context, log *zap.Logger, id string) {
	if err := d.q.Remove(ctx, id); err != nil {
		log.Error("failed to remove queued mutation", zap.Error(err))
	}
}
