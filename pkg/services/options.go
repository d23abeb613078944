package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coderAhmedHamood/pipefy/pkg/eventbus"
	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/otelhelper"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

// Notifier receives ticket events after a successful state change. It must not
// block; delivery failures are its own concern.
type Notifier interface {
	Notify(ctx context.Context, key string, event eventbus.Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, eventbus.Event) {}

// common holds the collaborators shared by every service.
type common struct {
	logger     *slog.Logger
	clock      clockwork.Clock
	authorizer Authorizer
	notifier   Notifier
	metrics    *metrics.Collector
	tracer     trace.Tracer
	validate   *validator.Validate
}

type Option func(*common)

func WithClock(clock clockwork.Clock) Option {
	return func(c *common) { c.clock = clock }
}

func WithAuthorizer(authorizer Authorizer) Option {
	return func(c *common) { c.authorizer = authorizer }
}

func WithNotifier(notifier Notifier) Option {
	return func(c *common) { c.notifier = notifier }
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *common) { c.metrics = collector }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *common) { c.tracer = tracer }
}

func newCommon(logger *slog.Logger, module string, opts []Option) common {
	c := common{
		logger:     logger.With("module", module),
		clock:      clockwork.NewRealClock(),
		authorizer: AllowAll{},
		notifier:   noopNotifier{},
		tracer:     otelhelper.NoopTracer(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// authorize asks the authorizer and turns any refusal into a forbidden error.
func (c *common) authorize(ctx context.Context, op, actor string, action Action, ticket *models.Ticket) error {
	err := c.authorizer.Authorize(ctx, actor, action, ticket)
	if err == nil {
		return nil
	}

	c.logger.WarnContext(ctx, "Action refused", "actor", actor, "action", action, "error", err)

	if !errors.Is(err, ErrForbidden) {
		err = fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	return &ServiceError{Op: op, Code: CodeForbidden, Message: err.Error(), Err: err}
}

// validationError converts validator failures into a 400 naming each field.
func validationError(op string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError(op, err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed on '%s'", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return NewValidationError(op, strings.Join(problems, "; "), ErrInvalidRequest)
}
