package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSpec runs a sweep every minute.
const DefaultSweepSpec = "@every 1m"

// Sweeper runs Scheduler.Sweep on a cron spec. A sweep still running when the
// next tick fires is not overlapped.
type Sweeper struct {
	scheduler *Scheduler
	spec      string
	logger    *slog.Logger
	cron      *cron.Cron
	entryID   cron.EntryID
	mutex     sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewSweeper(scheduler *Scheduler, spec string, logger *slog.Logger) *Sweeper {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	return &Sweeper{
		scheduler: scheduler,
		spec:      spec,
		logger:    logger.With("module", "rule_sweeper"),
	}
}

// Validate checks the sweep spec without starting anything.
func (s *Sweeper) Validate() error {
	if _, err := cron.ParseStandard(s.spec); err != nil {
		return fmt.Errorf("invalid sweep schedule '%s': %w", s.spec, err)
	}

	return nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron != nil {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		s.cancel()
		s.cron = nil

		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()

	s.logger.Info("Rule sweeper started", "schedule", s.spec, "entry_id", entryID)

	return nil
}

func (s *Sweeper) run() {
	created, err := s.scheduler.Sweep(s.ctx)
	if err != nil {
		s.logger.Error("Sweep failed", "error", err)

		return
	}

	if created > 0 {
		s.logger.Info("Sweep finished", "tickets_created", created)
	}
}

// Stop cancels the running sweep and waits for it to return.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron == nil {
		return nil
	}

	s.cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.cron = nil
	s.logger.Info("Rule sweeper stopped")

	return nil
}
