package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/testutil"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	validate = validator.New(validator.WithRequiredStructEnabled())
)

func failedTags(t *testing.T, err error) map[string]string {
	t.Helper()

	var validationErrors validator.ValidationErrors

	require.True(t, errors.As(err, &validationErrors))

	tags := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		tags[fieldError.Field()] = fieldError.Tag()
	}

	return tags
}

func TestProcess_Validation(t *testing.T) {
	t.Parallel()

	require.NoError(t, validate.Struct(testutil.LinearProcess()))

	tests := []struct {
		name    string
		mutate  func(*models.Process)
		field   string
		wantTag string
	}{
		{
			name:    "short name",
			mutate:  func(p *models.Process) { p.Name = "X" },
			field:   "Name",
			wantTag: "min",
		},
		{
			name:    "no stages",
			mutate:  func(p *models.Process) { p.Stages = nil },
			field:   "Stages",
			wantTag: "min",
		},
		{
			name:    "unnamed stage",
			mutate:  func(p *models.Process) { p.Stages[1].Name = "" },
			field:   "Name",
			wantTag: "required",
		},
		{
			name:    "unknown field type",
			mutate:  func(p *models.Process) { p.Fields[0].Type = "colour" },
			field:   "Type",
			wantTag: "oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			process := testutil.LinearProcess()
			tt.mutate(process)

			err := validate.Struct(process)
			require.Error(t, err)
			assert.Equal(t, tt.wantTag, failedTags(t, err)[tt.field])
		})
	}
}

func TestProcess_StageByID(t *testing.T) {
	t.Parallel()

	process := testutil.LinearProcess()

	assert.Same(t, process.Stages[1], process.StageByID(process.Stages[1].ID))
	assert.Nil(t, process.StageByID("missing"))
}

func TestStage_Allows(t *testing.T) {
	t.Parallel()

	from := testutil.CreateTestStage("New")
	to := testutil.CreateTestStage("Review")
	testutil.Allow(from, to)

	assert.True(t, from.Allows(to.ID))
	assert.False(t, to.Allows(from.ID))
}

func TestSchedule_Location(t *testing.T) {
	t.Parallel()

	loc, err := models.Schedule{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = models.Schedule{Timezone: "America/Sao_Paulo"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())

	_, err = models.Schedule{Timezone: "Mars/Olympus"}.Location()
	require.Error(t, err)
}

func TestRecurringRule_IsDue(t *testing.T) {
	t.Parallel()

	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Minute)

	tests := []struct {
		name   string
		mutate func(*models.RecurringRule)
		want   bool
	}{
		{name: "due", mutate: func(r *models.RecurringRule) { r.NextExecutionDate = &past }, want: true},
		{name: "due exactly now", mutate: func(r *models.RecurringRule) { r.NextExecutionDate = &testNow }, want: true},
		{name: "not yet", mutate: func(r *models.RecurringRule) { r.NextExecutionDate = &future }},
		{name: "never scheduled", mutate: func(r *models.RecurringRule) { r.NextExecutionDate = nil }},
		{
			name: "inactive",
			mutate: func(r *models.RecurringRule) {
				r.NextExecutionDate = &past
				r.IsActive = false
			},
		},
		{
			name: "exhausted",
			mutate: func(r *models.RecurringRule) {
				r.NextExecutionDate = &past
				r.MaxExecutions = testutil.Ptr(2)
				r.ExecutionCount = 2
			},
		},
		{
			name: "expired",
			mutate: func(r *models.RecurringRule) {
				r.NextExecutionDate = &past
				r.EndDate = &past
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := testutil.CreateTestRule("process-1", tt.mutate)
			assert.Equal(t, tt.want, rule.IsDue(testNow))
		})
	}
}

func TestRecurringRule_Claimed(t *testing.T) {
	t.Parallel()

	rule := testutil.CreateTestRule("process-1")
	assert.False(t, rule.Claimed(testNow))

	until := testNow.Add(time.Minute)
	rule.ClaimedUntil = &until
	assert.True(t, rule.Claimed(testNow))
	assert.False(t, rule.Claimed(until), "a lease ends at its deadline")
}

func TestFormatTicketNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TCK-000001", models.FormatTicketNumber(1))
	assert.Equal(t, "TCK-123456", models.FormatTicketNumber(123456))
	assert.Equal(t, "TCK-1234567", models.FormatTicketNumber(1234567))
}

func TestTicket_Clone(t *testing.T) {
	t.Parallel()

	ticket := &models.Ticket{ID: "ticket-1", Data: map[string]any{"field-1": "ACME"}}

	clone := ticket.Clone()
	clone.Data["field-1"] = "Globex"

	assert.Equal(t, "ACME", ticket.Data["field-1"])
	assert.Equal(t, ticket.ID, clone.ID)
}
