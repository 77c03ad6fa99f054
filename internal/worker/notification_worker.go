package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicpulse/hub/internal/config"
	"github.com/civicpulse/hub/internal/jobs"
	"github.com/civicpulse/hub/internal/service"
)

// Background owns the work that runs beside the HTTP server: event forwarding to
// the broker and the overdue sweep.
type Background struct {
	scheduler *jobs.Scheduler
	logger    *zap.Logger
}

// Start registers notification handlers and, when enabled, the overdue sweep.
func Start(cfg config.SchedulerConfig, notifications *service.NotificationService, complaints *service.ComplaintService, gauge jobs.OverdueGauge, logger *zap.Logger) (*Background, error) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	b := &Background{logger: logger}
	if !cfg.Enabled || complaints == nil {
		logger.Info("overdue sweep disabled")
		return b, nil
	}
	b.scheduler = jobs.NewScheduler(complaints, gauge, cfg.OverdueLookup, logger)
	if err := b.scheduler.Start(cfg.OverdueSpec); err != nil {
		return nil, err
	}
	return b, nil
}

// Stop halts the scheduler, waiting for an in-flight sweep up to ctx's deadline.
func (b *Background) Stop(ctx context.Context) {
	if b == nil || b.scheduler == nil {
		return
	}
	b.scheduler.Stop(ctx)
	b.logger.Info("background jobs stopped")
}
