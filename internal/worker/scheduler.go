package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Notifier is anything that can be asked to start a drain cycle.
type Notifier interface {
	Notify(t Trigger)
}

// Scheduler queues a drain cycle on a cron schedule, so the queue still
// empties when the connectivity observer never fires.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *zap.Logger
}

// NewScheduler parses spec (standard 5-field cron or "@every 5m") and binds
// it to n.
func NewScheduler(spec string, n Notifier, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { n.Notify(TriggerSchedule) }); err != nil {
		return nil, fmt.Errorf("parse drain schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, spec: spec, logger: logger}, nil
}

// Run starts the cron loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("drain scheduler started", zap.String("schedule", s.spec))
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info("drain scheduler stopping")
	<-s.cron.Stop().Done()
}
