// Package scheduler materializes tickets from recurring rules, either on a
// periodic sweep or on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/fieldmap"
	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/otelhelper"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/recurrence"
	"github.com/coderAhmedHamood/pipefy/pkg/template"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLease bounds how long a crashed executor can hold a rule.
const DefaultLease = 2 * time.Minute

// TicketCreator is the ticket creation entry point shared with manual creation.
type TicketCreator interface {
	Create(ctx context.Context, draft models.TicketDraft) (*models.Ticket, error)
}

// TriggerKind tells what started an execution.
type TriggerKind string

const (
	TriggerManual TriggerKind = "manual"
	TriggerSweep  TriggerKind = "sweep"
)

// Trigger identifies the origin of an execution and the actor behind it.
type Trigger struct {
	Kind  TriggerKind
	Actor string
}

type Scheduler struct {
	rules     persistence.RuleRepository
	processes persistence.ProcessRepository
	creator   TicketCreator
	locker    Locker
	clock     clockwork.Clock
	lease     time.Duration
	logger    *slog.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer
}

type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocker replaces the default repository-backed locker.
func WithLocker(locker Locker) Option {
	return func(s *Scheduler) { s.locker = locker }
}

func WithLease(lease time.Duration) Option {
	return func(s *Scheduler) { s.lease = lease }
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = collector }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = tracer }
}

func New(
	rules persistence.RuleRepository,
	processes persistence.ProcessRepository,
	creator TicketCreator,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		rules:     rules,
		processes: processes,
		creator:   creator,
		clock:     clockwork.NewRealClock(),
		lease:     DefaultLease,
		logger:    logger.With("module", "rule_scheduler"),
		tracer:    otelhelper.NoopTracer(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.locker == nil {
		s.locker = NewRepositoryLocker(rules, s.clock)
	}

	return s
}

// Execute materializes one ticket from the rule. Manual triggers run the rule
// regardless of its next execution date; sweep triggers only run due rules.
// At most one execution per rule proceeds at a time, a concurrent trigger gets
// ErrAlreadyExecuting.
func (s *Scheduler) Execute(ctx context.Context, ruleID string, trigger Trigger) (*models.Ticket, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.execute",
		attribute.String(otelhelper.RuleIDKey, ruleID),
		attribute.String(otelhelper.TriggerKey, string(trigger.Kind)),
	)
	defer span.End()

	ticket, err := s.execute(ctx, ruleID, trigger)

	s.metrics.RecordRuleExecution(string(trigger.Kind), resultOf(err))

	if err != nil {
		if !errors.Is(err, ErrRuleNotDue) {
			otelhelper.SetError(span, err)
		}

		return nil, &ExecutionError{RuleID: ruleID, Trigger: trigger.Kind, Err: err}
	}

	span.SetAttributes(attribute.String(otelhelper.TicketIDKey, ticket.ID))

	return ticket, nil
}

func (s *Scheduler) execute(ctx context.Context, ruleID string, trigger Trigger) (*models.Ticket, error) {
	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if err := s.admit(rule, trigger); err != nil {
		return nil, err
	}

	token, err := s.locker.Acquire(ctx, rule.ID, s.lease)
	if err != nil {
		return nil, err
	}

	defer func() {
		// release even when the caller's context is gone
		if err := s.locker.Release(context.WithoutCancel(ctx), rule.ID, token); err != nil {
			s.logger.ErrorContext(ctx, "Failed to release rule claim", "rule_id", rule.ID, "error", err)
		}
	}()

	// re-read under the claim: another execution may have advanced the rule
	rule, err = s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if err := s.admit(rule, trigger); err != nil {
		return nil, err
	}

	ticket, err := s.materialize(ctx, rule, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize ticket: %w", err)
	}

	if err := s.advance(context.WithoutCancel(ctx), rule); err != nil {
		// the ticket exists; the rule will be retried from its old state
		s.logger.ErrorContext(ctx, "Failed to advance rule after materialization",
			"rule_id", rule.ID, "ticket_id", ticket.ID, "error", err)

		return nil, err
	}

	s.logger.InfoContext(ctx, "Rule executed",
		"rule_id", rule.ID,
		"trigger", trigger.Kind,
		"ticket_id", ticket.ID,
		"execution_count", rule.ExecutionCount,
		"next_execution_date", rule.NextExecutionDate)

	return ticket, nil
}

// admit rejects rules a trigger may not run. Claims are left to the locker.
func (s *Scheduler) admit(rule *models.RecurringRule, trigger Trigger) error {
	now := s.clock.Now().UTC()

	if err := stateError(StateOf(rule, now)); err != nil {
		return err
	}

	if trigger.Kind == TriggerSweep && !rule.IsDue(now) {
		return ErrRuleNotDue
	}

	return nil
}

func (s *Scheduler) materialize(ctx context.Context, rule *models.RecurringRule, trigger Trigger) (*models.Ticket, error) {
	process, err := s.processes.GetByID(ctx, rule.ProcessID)
	if err != nil {
		return nil, err
	}

	data, dropped := fieldmap.New(process.Fields).ToStoredKeys(rule.Template.Data)
	if len(dropped) > 0 {
		s.logger.WarnContext(ctx, "Dropped template fields unknown to the process",
			"rule_id", rule.ID, "process_id", rule.ProcessID, "fields", dropped)
	}

	tpl := rule.Template
	now := s.clock.Now().UTC()

	priority := tpl.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	var dueDate *time.Time

	if tpl.DueInDays != nil {
		due := now.AddDate(0, 0, *tpl.DueInDays)
		dueDate = &due
	}

	text := template.Data{
		RuleID:    rule.ID,
		Rule:      rule.Name,
		Process:   process.Name,
		Execution: rule.ExecutionCount + 1,
		Now:       now,
	}

	actor := trigger.Actor
	if actor == "" {
		actor = rule.CreatedBy
	}

	return s.creator.Create(ctx, models.TicketDraft{
		ProcessID:   rule.ProcessID,
		StageID:     NormalizeOptional(tpl.StageID),
		Title:       s.render(ctx, rule, tpl.Title, text),
		Description: s.render(ctx, rule, tpl.Description, text),
		Priority:    priority,
		Type:        tpl.TicketType,
		AssignedTo:  NormalizeOptional(tpl.AssignedTo),
		DueDate:     dueDate,
		Data:        data,
		CreatedBy:   actor,
		Origin:      models.OriginRecurringRule,
		OriginID:    rule.ID,
	})
}

// render expands template text, falling back to the raw text so that a broken
// template still yields a ticket.
func (s *Scheduler) render(ctx context.Context, rule *models.RecurringRule, text string, data template.Data) string {
	rendered, err := template.Render(text, data)
	if err != nil {
		s.logger.WarnContext(ctx, "Using unrendered template text", "rule_id", rule.ID, "error", err)

		return text
	}

	return rendered
}

// advance records the execution. The next execution date never moves backwards.
func (s *Scheduler) advance(ctx context.Context, rule *models.RecurringRule) error {
	now := s.clock.Now().UTC()

	next, err := recurrence.Next(rule.Schedule, now)
	if err != nil {
		return err
	}

	if rule.NextExecutionDate != nil && rule.NextExecutionDate.After(next) {
		next = *rule.NextExecutionDate
	}

	expected := rule.ExecutionCount

	rule.ExecutionCount++
	rule.LastExecutionDate = &now
	rule.NextExecutionDate = &next

	return s.rules.Complete(ctx, rule, expected)
}

// Sweep executes every due rule once. Per-rule failures are logged and do not
// stop the sweep; the number of tickets created is returned.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	started := s.clock.Now()

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.sweep")
	defer span.End()

	due, err := s.rules.Due(ctx, started.UTC())
	if err != nil {
		otelhelper.SetError(span, err)

		return 0, fmt.Errorf("failed to load due rules: %w", err)
	}

	span.SetAttributes(attribute.Int(otelhelper.DueRulesKey, len(due)))

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "Processing due rules", "count", len(due))
	}

	created := 0

	for _, rule := range due {
		if ctx.Err() != nil {
			break
		}

		_, err := s.Execute(ctx, rule.ID, Trigger{Kind: TriggerSweep})

		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrAlreadyExecuting), errors.Is(err, ErrRuleNotDue):
			s.logger.DebugContext(ctx, "Skipped rule", "rule_id", rule.ID, "reason", err)
		default:
			s.logger.ErrorContext(ctx, "Failed to execute due rule", "rule_id", rule.ID, "error", err)
		}
	}

	s.metrics.RecordSweep(s.clock.Since(started), len(due))

	return created, nil
}

// NormalizeOptional turns blank optional references into nil.
func NormalizeOptional(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}

	trimmed := strings.TrimSpace(*value)

	return &trimmed
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrAlreadyExecuting):
		return metrics.ResultConflict
	case errors.Is(err, ErrRuleNotDue):
		return metrics.ResultSkipped
	case errors.Is(err, ErrRuleInactive), errors.Is(err, ErrRuleExhausted), errors.Is(err, ErrRuleExpired),
		persistence.IsNotFound(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
