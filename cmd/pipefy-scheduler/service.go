package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/config"
	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"go.opentelemetry.io/otel/trace"
)

const stopTimeout = 30 * time.Second

// Service sweeps due recurring rules and serves its own probes and metrics.
type Service struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	metrics     *metrics.Collector
	port        int

	scheduler *scheduler.Scheduler
	sweeper   *scheduler.Sweeper
}

func NewService(
	logger *slog.Logger,
	persistence persistence.Persistence,
	notifier services.Notifier,
	locker scheduler.Locker,
	collector *metrics.Collector,
	tracer trace.Tracer,
	cfg config.Config,
) *Service {
	tickets := services.NewTickets(
		persistence.ProcessRepository(),
		persistence.TicketRepository(),
		logger,
		services.WithNotifier(notifier),
		services.WithMetrics(collector),
		services.WithTracer(tracer),
	)

	opts := []scheduler.Option{
		scheduler.WithLease(cfg.ClaimLease),
		scheduler.WithMetrics(collector),
		scheduler.WithTracer(tracer),
	}
	if locker != nil {
		opts = append(opts, scheduler.WithLocker(locker))
	}

	sched := scheduler.New(persistence.RuleRepository(), persistence.ProcessRepository(), tickets, logger, opts...)

	return &Service{
		logger:      logger,
		persistence: persistence,
		metrics:     collector,
		port:        cfg.Port,
		scheduler:   sched,
		sweeper:     scheduler.NewSweeper(sched, cfg.SweepSpec, logger),
	}
}

// App serves liveness, readiness and metrics.
func (s *Service) App() *fiber.App {
	app := fiber.New()

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return s.persistence.HealthCheck(c.Context()) == nil
		},
	}))
	app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	return app
}

// Run starts the sweeper and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.sweeper.Validate(); err != nil {
		return err
	}

	app := s.App()
	errs := make(chan error, 1)

	go func() {
		errs <- app.Listen(":"+strconv.Itoa(s.port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	if err := s.sweeper.Start(ctx); err != nil {
		return errors.Join(err, app.Shutdown())
	}

	s.logger.InfoContext(ctx, "Pipefy scheduler started", "port", s.port)

	var runErr error

	select {
	case runErr = <-errs:
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "Shutting down Pipefy scheduler")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	return errors.Join(runErr, s.sweeper.Stop(stopCtx), app.ShutdownWithContext(stopCtx))
}
