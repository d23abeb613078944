package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence/file"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/services"
	"github.com/coderAhmedHamood/pipefy/pkg/testutil"
	"github.com/coderAhmedHamood/pipefy/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type problem struct {
	Type     string `json:"type"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func setupTestApp(t *testing.T, opts ...services.Option) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	clock := clockwork.NewFakeClockAt(testNow)

	opts = append([]services.Option{services.WithClock(clock)}, opts...)

	processes := services.NewProcesses(store.ProcessRepository(), logger, opts...)
	tickets := services.NewTickets(store.ProcessRepository(), store.TicketRepository(), logger, opts...)
	sched := scheduler.New(store.RuleRepository(), store.ProcessRepository(), tickets, logger, scheduler.WithClock(clock))
	rules := services.NewRules(store.RuleRepository(), store.ProcessRepository(), sched, logger, opts...)

	handlers := web.NewAPIHandlers(processes, tickets, rules,
		validator.New(validator.WithRequiredStructEnabled()),
		map[string]web.HealthChecker{"persistence": store})

	app := fiber.New()
	handlers.Register(app)

	return app, store
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.ActorHeader, "user-1")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func decodeProblem(t *testing.T, body []byte) problem {
	t.Helper()

	var p problem
	require.NoError(t, json.Unmarshal(body, &p))

	return p
}

func saveLinear(t *testing.T, store persistence.Persistence) *models.Process {
	t.Helper()

	process := testutil.LinearProcess()
	require.NoError(t, store.ProcessRepository().Save(t.Context(), process))

	return process
}

func TestAPIHandlers_CreateProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name: "successful creation",
			requestBody: web.CreateProcessRequest{
				Name: "Support",
				Stages: []*web.StageRequest{
					{Name: "New", IsInitial: true, AllowedTransitions: []string{"Done"}},
					{Name: "Done", IsFinal: true, OrderIndex: 1},
				},
				Fields: []*web.FieldRequest{{Name: "customer", Type: models.FieldTypeText}},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "validation error - no stages",
			requestBody:    web.CreateProcessRequest{Name: "Support"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   services.CodeValidation,
		},
		{
			name: "validation error - dangling transition",
			requestBody: web.CreateProcessRequest{
				Name:   "Support",
				Stages: []*web.StageRequest{{Name: "New", AllowedTransitions: []string{"Nowhere"}}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   services.CodeValidation,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   services.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, body := do(t, app, http.MethodPost, "/processes", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, decodeProblem(t, body).Type)

				return
			}

			var process models.Process
			require.NoError(t, json.Unmarshal(body, &process))
			assert.NotEmpty(t, process.ID)
			require.Len(t, process.Stages, 2)
			assert.Equal(t, []string{process.Stages[1].ID}, process.Stages[0].AllowedTransitions)
		})
	}
}

func TestAPIHandlers_GetProcess(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	process := saveLinear(t, store)

	resp, body := do(t, app, http.MethodGet, "/processes/"+process.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Process
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, process.Name, fetched.Name)

	resp, body = do(t, app, http.MethodGet, "/processes/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, services.CodeNotFound, decodeProblem(t, body).Type)

	resp, body = do(t, app, http.MethodGet, "/processes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var all []models.Process
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 1)
}

func TestAPIHandlers_TicketLifecycle(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	process := saveLinear(t, store)
	newStage, review, done := process.Stages[0], process.Stages[1], process.Stages[2]

	resp, body := do(t, app, http.MethodPost, "/tickets", web.CreateTicketRequest{
		ProcessID: process.ID,
		Title:     "Printer on fire",
		Data:      map[string]any{"customer": "ACME"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.Equal(t, newStage.ID, ticket.CurrentStageID)
	assert.Equal(t, "user-1", ticket.CreatedBy, "actor comes from the header")

	resp, body = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/move", web.MoveTicketRequest{TargetStageID: done.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeInvalidTransition, decodeProblem(t, body).Type)

	resp, body = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/move", web.MoveTicketRequest{TargetStageID: newStage.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeAlreadyInState, decodeProblem(t, body).Type)

	resp, body = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/move", web.MoveTicketRequest{
		TargetStageID: review.ID, Comment: "on it",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.Equal(t, review.ID, ticket.CurrentStageID)

	resp, body = do(t, app, http.MethodGet, "/tickets/"+ticket.ID+"/activities", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var activities []models.Activity
	require.NoError(t, json.Unmarshal(body, &activities))
	require.Len(t, activities, 2)
	assert.Equal(t, models.ActivityStageChanged, activities[1].Type)

	target := saveLinear(t, store)

	resp, body = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/move-to-process", web.MigrateTicketRequest{
		TargetProcessID: target.ID, RemapFields: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result services.MigrationResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, target.ID, result.Ticket.ProcessID)
	assert.Equal(t, target.Stages[0].ID, result.Ticket.CurrentStageID)
	assert.Empty(t, result.OrphanedFields)

	resp, _ = do(t, app, http.MethodGet, "/tickets/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_CreateTicketErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    func(process *models.Process) any
		expectedStatus int
		expectedType   string
	}{
		{
			name: "missing title",
			requestBody: func(process *models.Process) any {
				return web.CreateTicketRequest{ProcessID: process.ID}
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   services.CodeValidation,
		},
		{
			name: "unknown process",
			requestBody: func(*models.Process) any {
				return web.CreateTicketRequest{ProcessID: "missing", Title: "x"}
			},
			expectedStatus: http.StatusNotFound,
			expectedType:   services.CodeNotFound,
		},
		{
			name: "unknown field",
			requestBody: func(process *models.Process) any {
				return web.CreateTicketRequest{ProcessID: process.ID, Title: "x", Data: map[string]any{"colour": "red"}}
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   services.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, store := setupTestApp(t)
			process := saveLinear(t, store)

			resp, body := do(t, app, http.MethodPost, "/tickets", tt.requestBody(process))
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectedType, decodeProblem(t, body).Type)
		})
	}
}

func TestAPIHandlers_Forbidden(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t, services.WithAuthorizer(services.AuthorizerFunc(
		func(_ context.Context, _ string, action services.Action, _ *models.Ticket) error {
			if action == services.ActionMoveTicket {
				return services.ErrForbidden
			}

			return nil
		})))
	process := saveLinear(t, store)

	resp, body := do(t, app, http.MethodPost, "/tickets", web.CreateTicketRequest{ProcessID: process.ID, Title: "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(body, &ticket))

	resp, body = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/move", web.MoveTicketRequest{TargetStageID: process.Stages[1].ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, services.CodeForbidden, decodeProblem(t, body).Type)
}

func TestAPIHandlers_Rules(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	process := saveLinear(t, store)

	request := web.RuleRequest{
		ProcessID: process.ID,
		Name:      "Morning check",
		Template: models.TicketTemplate{
			Title: "Check the printers",
			Data:  map[string]any{"customer": "ACME"},
		},
		Schedule: models.Schedule{Type: models.ScheduleDaily, Interval: 1, Time: "09:00"},
	}

	resp, body := do(t, app, http.MethodPost, "/recurring/rules", request)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var view struct {
		models.RecurringRule

		DataByName map[string]any `json:"data_by_name"`
		State      string         `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &view))

	assert.Equal(t, map[string]any{"customer": "ACME"}, view.DataByName)
	assert.Equal(t, map[string]any{process.Fields[0].ID: "ACME"}, view.Template.Data)
	assert.Equal(t, string(scheduler.StatePending), view.State)
	require.NotNil(t, view.NextExecutionDate)
	assert.True(t, view.NextExecutionDate.Equal(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)))

	ruleID := view.ID

	resp, body = do(t, app, http.MethodGet, "/recurring/rules/"+ruleID+"/preview?count=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var preview web.PreviewResponse
	require.NoError(t, json.Unmarshal(body, &preview))
	assert.Equal(t, 2, preview.Count)

	resp, body = do(t, app, http.MethodGet, "/recurring/rules/"+ruleID+"/preview?count=51", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeValidation, decodeProblem(t, body).Type)

	resp, _ = do(t, app, http.MethodGet, "/recurring/rules/"+ruleID+"/preview?count=many", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, http.MethodPost, "/recurring/rules/"+ruleID+"/run", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.Equal(t, "Check the printers", ticket.Title)

	request.IsActive = testutil.Ptr(false)

	resp, body = do(t, app, http.MethodPut, "/recurring/rules/"+ruleID, request)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 1, view.ExecutionCount)
	assert.Equal(t, string(scheduler.StateInactive), view.State)

	resp, body = do(t, app, http.MethodPost, "/recurring/rules/"+ruleID+"/run", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.CodeRuleNotRunnable, decodeProblem(t, body).Type)

	resp, body = do(t, app, http.MethodGet, "/recurring/rules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []map[string]any
	require.NoError(t, json.Unmarshal(body, &views))
	assert.Len(t, views, 1)

	resp, _ = do(t, app, http.MethodGet, "/recurring/rules/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, map[string]any{"persistence": "ok"}, health["checkers"])
}
