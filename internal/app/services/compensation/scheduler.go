package compensation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/podcastofficial/Usdt-miner/internal/app/system"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// Scheduler runs the daily accrual batch on a cron schedule.
type Scheduler struct {
	service *Service
	spec    string
	log     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Scheduler)(nil)

// NewScheduler wires the engine to a cron runner. The default spec fires
// once per day at midnight UTC.
func NewScheduler(service *Service, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("accrual-scheduler")
	}
	return &Scheduler{
		service: service,
		spec:    "@daily",
		log:     log,
	}
}

// WithSpec overrides the cron expression.
func (s *Scheduler) WithSpec(spec string) *Scheduler {
	if trimmed := strings.TrimSpace(spec); trimmed != "" {
		s.spec = trimmed
	}
	return s
}

func (s *Scheduler) Name() string { return "accrual-scheduler" }

// Start registers the cron entry and begins scheduling.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("accrual scheduler already running")
	}

	runner := cron.New()
	if _, err := runner.AddFunc(s.spec, func() {
		if _, err := s.service.RunDailyAccrual(context.Background()); err != nil {
			s.log.WithError(err).Error("scheduled accrual run failed")
		}
	}); err != nil {
		return fmt.Errorf("register accrual schedule %q: %w", s.spec, err)
	}

	runner.Start()
	s.cron = runner
	s.running = true
	s.log.WithField("spec", s.spec).Info("accrual scheduler started")
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	stopCtx := s.cron.Stop()
	s.running = false

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
