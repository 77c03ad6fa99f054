package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/civicpulse/hub/internal/domain"
)

// OverdueSource lists overdue complaints and announces them.
type OverdueSource interface {
	Overdue(ctx context.Context, limit int) ([]domain.Complaint, error)
	NotifyOverdue(ctx context.Context, complaint domain.Complaint)
}

// OverdueGauge receives the size of each sweep.
type OverdueGauge interface {
	SetOverdue(n int)
}

// Scheduler runs the periodic deadline sweep.
type Scheduler struct {
	cron   *cron.Cron
	source OverdueSource
	gauge  OverdueGauge
	limit  int
	log    *zap.Logger

	mu       sync.Mutex
	notified map[int64]time.Time
}

func NewScheduler(source OverdueSource, gauge OverdueGauge, limit int, log *zap.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{
		cron:     c,
		source:   source,
		gauge:    gauge,
		limit:    limit,
		log:      log,
		notified: make(map[int64]time.Time),
	}
}

// Start registers the sweep under spec (six-field, with seconds) and starts cron.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("overdue sweep scheduled", zap.String("spec", spec))
	return nil
}

// Stop waits for a running sweep to finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
	}
}

// Sweep announces each overdue complaint once per deadline and returns how many
// complaints are currently overdue. A reassigned complaint gets a new deadline and
// is announced again when that one passes.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	overdue, err := s.source.Overdue(ctx, s.limit)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	current := make(map[int64]time.Time, len(overdue))
	var fresh []domain.Complaint
	for _, c := range overdue {
		if c.DeadlineAt == nil {
			continue
		}
		current[c.ComplainID] = *c.DeadlineAt
		if seen, ok := s.notified[c.ComplainID]; ok && seen.Equal(*c.DeadlineAt) {
			continue
		}
		fresh = append(fresh, c)
	}
	s.notified = current
	s.mu.Unlock()

	for _, c := range fresh {
		s.source.NotifyOverdue(ctx, c)
	}
	if s.gauge != nil {
		s.gauge.SetOverdue(len(overdue))
	}
	if len(fresh) > 0 {
		s.log.Info("overdue sweep", zap.Int("overdue", len(overdue)), zap.Int("announced", len(fresh)))
	}
	return len(overdue), nil
}
