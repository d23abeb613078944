package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/fieldmap"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/recurrence"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/template"
	"github.com/coderAhmedHamood/pipefy/pkg/workflow"
)

// MaxPreview bounds the number of instants a preview returns.
const MaxPreview = 50

// Rules manages recurring rules and runs them on demand.
type Rules struct {
	common

	rules     persistence.RuleRepository
	processes persistence.ProcessRepository
	scheduler *scheduler.Scheduler
}

func NewRules(
	rules persistence.RuleRepository,
	processes persistence.ProcessRepository,
	sched *scheduler.Scheduler,
	logger *slog.Logger,
	opts ...Option,
) *Rules {
	return &Rules{
		common:    newCommon(logger, "rule_service", opts),
		rules:     rules,
		processes: processes,
		scheduler: sched,
	}
}

// RuleInput carries the operator-editable fields of a rule.
type RuleInput struct {
	ProcessID     string `validate:"required"`
	Name          string `validate:"required,min=2,max=255"`
	Description   string
	Template      models.TicketTemplate
	Schedule      models.Schedule
	StartDate     *time.Time
	EndDate       *time.Time
	IsActive      *bool
	MaxExecutions *int `validate:"omitempty,min=1"`
}

// RuleView is a rule as presented for editing: template data is also given
// keyed by field name, and the derived scheduling state is included.
type RuleView struct {
	*models.RecurringRule

	DataByName map[string]any  `json:"data_by_name"`
	State      scheduler.State `json:"state"`
}

func (s *Rules) Create(ctx context.Context, input RuleInput, actor string) (*models.RecurringRule, error) {
	const op = "CreateRule"

	if err := s.authorize(ctx, op, actor, ActionManageRule, nil); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	rule := &models.RecurringRule{
		IsActive:  true,
		StartDate: now,
		CreatedBy: actor,
	}

	if err := s.apply(ctx, op, rule, input); err != nil {
		return nil, classify(op, err)
	}

	if err := s.schedule(rule, now); err != nil {
		return nil, classify(op, err)
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, classify(op, err)
	}

	s.logger.InfoContext(ctx, "Rule created",
		"rule_id", rule.ID, "process_id", rule.ProcessID, "next_execution_date", rule.NextExecutionDate)

	return rule, nil
}

// Update replaces the operator-editable fields of a rule. Execution history is
// kept. The next execution date is recomputed when the schedule or start date
// changes, or when the rule is reactivated; missed occurrences are not
// backfilled.
func (s *Rules) Update(ctx context.Context, id string, input RuleInput, actor string) (*models.RecurringRule, error) {
	const op = "UpdateRule"

	if err := s.authorize(ctx, op, actor, ActionManageRule, nil); err != nil {
		return nil, err
	}

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, classify(op, err)
	}

	previous := *rule

	if err := s.apply(ctx, op, rule, input); err != nil {
		return nil, classify(op, err)
	}

	now := s.clock.Now().UTC()
	reactivated := !previous.IsActive && rule.IsActive

	if reactivated || !sameSchedule(previous.Schedule, rule.Schedule) || !previous.StartDate.Equal(rule.StartDate) {
		if err := s.schedule(rule, now); err != nil {
			return nil, classify(op, err)
		}
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, classify(op, err)
	}

	s.logger.InfoContext(ctx, "Rule updated",
		"rule_id", rule.ID, "is_active", rule.IsActive, "next_execution_date", rule.NextExecutionDate)

	return rule, nil
}

func (s *Rules) Get(ctx context.Context, id string) (*models.RecurringRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, classify("GetRule", err)
	}

	return rule, nil
}

func (s *Rules) List(ctx context.Context) ([]*models.RecurringRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, classify("ListRules", err)
	}

	return rules, nil
}

// View renders rule for editing against its process's current fields.
func (s *Rules) View(ctx context.Context, rule *models.RecurringRule) (*RuleView, error) {
	process, err := s.processes.GetByID(ctx, rule.ProcessID)
	if err != nil {
		return nil, classify("ViewRule", err)
	}

	return &RuleView{
		RecurringRule: rule,
		DataByName:    fieldmap.New(process.Fields).ToNamedKeys(rule.Template.Data),
		State:         scheduler.StateOf(rule, s.clock.Now().UTC()),
	}, nil
}

// RunNow materializes a ticket from the rule immediately, whatever its next
// execution date.
func (s *Rules) RunNow(ctx context.Context, id, actor string) (*models.Ticket, error) {
	const op = "RunRule"

	if err := s.authorize(ctx, op, actor, ActionRunRule, nil); err != nil {
		return nil, err
	}

	ticket, err := s.scheduler.Execute(ctx, id, scheduler.Trigger{Kind: scheduler.TriggerManual, Actor: actor})
	if err != nil {
		return nil, classify(op, err)
	}

	return ticket, nil
}

// Preview lists the next n execution instants of a rule, stopping at its end
// date and at its run cap.
func (s *Rules) Preview(ctx context.Context, id string, n int) ([]time.Time, error) {
	const op = "PreviewRule"

	if n < 1 || n > MaxPreview {
		return nil, NewValidationError(op, fmt.Sprintf("count must be between 1 and %d", MaxPreview), ErrInvalidRequest)
	}

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, classify(op, err)
	}

	if rule.MaxExecutions != nil {
		n = min(n, max(*rule.MaxExecutions-rule.ExecutionCount, 0))
	}

	if n == 0 {
		return []time.Time{}, nil
	}

	now := s.clock.Now().UTC()

	var first time.Time

	if rule.NextExecutionDate != nil && !rule.NextExecutionDate.Before(now) {
		first = *rule.NextExecutionDate
	} else if first, err = recurrence.First(rule.Schedule, now); err != nil {
		return nil, classify(op, err)
	}

	rest, err := recurrence.Preview(rule.Schedule, first, n-1)
	if err != nil {
		return nil, classify(op, err)
	}

	instants := make([]time.Time, 0, n)

	for _, instant := range append([]time.Time{first}, rest...) {
		if rule.EndDate != nil && instant.After(*rule.EndDate) {
			break
		}

		instants = append(instants, instant.UTC())
	}

	return instants, nil
}

// apply validates input against the rule's process and copies it onto rule.
// Template data is stored keyed by field id.
func (s *Rules) apply(ctx context.Context, op string, rule *models.RecurringRule, input RuleInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Template.Title = strings.TrimSpace(input.Template.Title)

	if err := s.validate.Struct(input); err != nil {
		return validationError(op, err)
	}

	if err := recurrence.Validate(input.Schedule); err != nil {
		return NewValidationError(op, err.Error(), err)
	}

	process, err := s.processes.GetByID(ctx, input.ProcessID)
	if err != nil {
		return err
	}

	tpl := input.Template
	tpl.AssignedTo = scheduler.NormalizeOptional(tpl.AssignedTo)
	tpl.StageID = scheduler.NormalizeOptional(tpl.StageID)

	if tpl.StageID != nil && !workflow.NewGraph(process).HasStage(*tpl.StageID) {
		return NewValidationError(op,
			fmt.Sprintf("template stage %s is not part of process %s", *tpl.StageID, process.ID), ErrInvalidRequest)
	}

	for _, text := range []string{tpl.Title, tpl.Description} {
		if err := template.Validate(text); err != nil {
			return NewValidationError(op, err.Error(), ErrInvalidRequest)
		}
	}

	data, dropped := fieldmap.New(process.Fields).ToStoredKeys(tpl.Data)
	if len(dropped) > 0 {
		sort.Strings(dropped)

		return NewValidationError(op,
			fmt.Sprintf("unknown template fields for process %s: %s", process.ID, strings.Join(dropped, ", ")), ErrInvalidRequest)
	}

	tpl.Data = data

	startDate := rule.StartDate
	if input.StartDate != nil {
		startDate = input.StartDate.UTC()
	}

	if input.EndDate != nil && input.EndDate.Before(startDate) {
		return NewValidationError(op, "end_date is before start_date", ErrInvalidRequest)
	}

	rule.ProcessID = process.ID
	rule.Name = input.Name
	rule.Description = input.Description
	rule.Template = tpl
	rule.Schedule = input.Schedule
	rule.StartDate = startDate
	rule.EndDate = input.EndDate
	rule.MaxExecutions = input.MaxExecutions

	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	return nil
}

// schedule sets the first execution at or after the later of the start date and now.
func (s *Rules) schedule(rule *models.RecurringRule, now time.Time) error {
	from := now
	if rule.StartDate.After(now) {
		from = rule.StartDate
	}

	next, err := recurrence.First(rule.Schedule, from)
	if err != nil {
		return err
	}

	next = next.UTC()
	rule.NextExecutionDate = &next

	return nil
}

func sameSchedule(a, b models.Schedule) bool {
	if a.Type != b.Type || a.Interval != b.Interval || a.Time != b.Time || a.Timezone != b.Timezone {
		return false
	}

	if (a.DayOfMonth == nil) != (b.DayOfMonth == nil) || (a.DayOfMonth != nil && *a.DayOfMonth != *b.DayOfMonth) {
		return false
	}

	return slices.Equal(a.Weekdays, b.Weekdays)
}
