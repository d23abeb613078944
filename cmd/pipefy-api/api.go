// Package main provides the Pipefy API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/services"
	"github.com/coderAhmedHamood/pipefy/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	notifier    services.Notifier
	locker      scheduler.Locker
	metrics     *metrics.Collector
	tracer      trace.Tracer
	lease       time.Duration
	validate    *validator.Validate

	app *fiber.App
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	notifier services.Notifier,
	locker scheduler.Locker,
	collector *metrics.Collector,
	tracer trace.Tracer,
	lease time.Duration,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		notifier:    notifier,
		locker:      locker,
		metrics:     collector,
		tracer:      tracer,
		lease:       lease,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	opts := []services.Option{
		services.WithNotifier(a.notifier),
		services.WithMetrics(a.metrics),
		services.WithTracer(a.tracer),
	}

	processes := services.NewProcesses(a.persistence.ProcessRepository(), a.logger, opts...)
	tickets := services.NewTickets(a.persistence.ProcessRepository(), a.persistence.TicketRepository(), a.logger, opts...)

	schedulerOpts := []scheduler.Option{
		scheduler.WithMetrics(a.metrics),
		scheduler.WithTracer(a.tracer),
		scheduler.WithLease(a.lease),
	}
	if a.locker != nil {
		schedulerOpts = append(schedulerOpts, scheduler.WithLocker(a.locker))
	}

	sched := scheduler.New(a.persistence.RuleRepository(), a.persistence.ProcessRepository(), tickets, a.logger, schedulerOpts...)
	rules := services.NewRules(a.persistence.RuleRepository(), a.persistence.ProcessRepository(), sched, a.logger, opts...)

	handlers := web.NewAPIHandlers(processes, tickets, rules, a.validate,
		map[string]web.HealthChecker{"persistence": a.persistence})

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))
	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Pipefy API")
	})

	handlers.Register(app)

	return app
}

// Start serves the API until ctx is cancelled, then drains in-flight requests.
func (a *API) Start(ctx context.Context, port int) error {
	a.app = a.App()

	errs := make(chan error, 1)

	go func() {
		errs <- a.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "Pipefy API listening", "port", port)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "Shutting down Pipefy API")

		return a.app.ShutdownWithContext(context.WithoutCancel(ctx))
	}
}
