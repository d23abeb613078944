// Package web provides HTTP handlers and REST API endpoints for processes,
// tickets and recurring rules.
package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ActorHeader carries the id of the user performing a request.
const ActorHeader = "X-User-ID"

const defaultPreviewCount = 10

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	processes *services.Processes
	tickets   *services.Tickets
	rules     *services.Rules
	validator *validator.Validate
	checkers  map[string]HealthChecker
}

func NewAPIHandlers(
	processes *services.Processes,
	tickets *services.Tickets,
	rules *services.Rules,
	validator *validator.Validate,
	checkers map[string]HealthChecker,
) *APIHandlers {
	return &APIHandlers{
		processes: processes,
		tickets:   tickets,
		rules:     rules,
		validator: validator,
		checkers:  checkers,
	}
}

// Register mounts every API route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	p := router.Group("/processes")
	p.Get("/", h.ListProcesses)
	p.Post("/", h.CreateProcess)
	p.Get("/:id", h.GetProcess)

	t := router.Group("/tickets")
	t.Post("/", h.CreateTicket)
	t.Get("/:id", h.GetTicket)
	t.Get("/:id/activities", h.GetTicketActivities)
	t.Post("/:id/move", h.MoveTicket)
	t.Post("/:id/move-to-process", h.MigrateTicket)

	r := router.Group("/recurring/rules")
	r.Get("/", h.ListRules)
	r.Post("/", h.CreateRule)
	r.Get("/:id", h.GetRule)
	r.Put("/:id", h.UpdateRule)
	r.Post("/:id/run", h.RunRule)
	r.Get("/:id/preview", h.PreviewRule)

	router.Get("/health", h.HealthCheck)
}

func actor(c fiber.Ctx) string {
	return strings.TrimSpace(c.Get(ActorHeader))
}

func (h *APIHandlers) bind(c fiber.Ctx, req any) (string, bool) {
	if err := c.Bind().JSON(req); err != nil {
		return "Invalid JSON format", false
	}

	if err := h.validator.Struct(req); err != nil {
		return err.Error(), false
	}

	return "", true
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	for name, checker := range h.checkers {
		if err := checker.HealthCheck(c.Context()); err != nil {
			healthy = false
			checks[name] = err.Error()

			continue
		}

		checks[name] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  checks,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListProcesses(c fiber.Ctx) error {
	processes, err := h.processes.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(processes)
}

func (h *APIHandlers) CreateProcess(c fiber.Ctx) error {
	var req CreateProcessRequest
	if detail, ok := h.bind(c, &req); !ok {
		return badRequest(c, detail)
	}

	created, err := h.processes.Create(c.Context(), req.toProcess(), actor(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetProcess(c fiber.Ctx) error {
	process, err := h.processes.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(process)
}

func (h *APIHandlers) CreateTicket(c fiber.Ctx) error {
	var req CreateTicketRequest
	if detail, ok := h.bind(c, &req); !ok {
		return badRequest(c, detail)
	}

	ticket, err := h.tickets.Create(c.Context(), req.toDraft(actor(c)))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ticket)
}

func (h *APIHandlers) GetTicket(c fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ticket)
}

func (h *APIHandlers) GetTicketActivities(c fiber.Ctx) error {
	activities, err := h.tickets.Activities(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activities)
}

func (h *APIHandlers) MoveTicket(c fiber.Ctx) error {
	var req MoveTicketRequest
	if detail, ok := h.bind(c, &req); !ok {
		return badRequest(c, detail)
	}

	ticket, err := h.tickets.Move(c.Context(), c.Params("id"), services.MoveInput{
		TargetStageID:       req.TargetStageID,
		Comment:             req.Comment,
		ValidateTransitions: req.ValidateTransitions,
		Actor:               actor(c),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ticket)
}

func (h *APIHandlers) MigrateTicket(c fiber.Ctx) error {
	var req MigrateTicketRequest
	if detail, ok := h.bind(c, &req); !ok {
		return badRequest(c, detail)
	}

	result, err := h.tickets.Migrate(c.Context(), c.Params("id"), services.MigrateInput{
		TargetProcessID: req.TargetProcessID,
		RemapFields:     req.RemapFields,
		Actor:           actor(c),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListRules(c fiber.Ctx) error {
	rules, err := h.rules.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	views := make([]*services.RuleView, 0, len(rules))

	for _, rule := range rules {
		view, err := h.rules.View(c.Context(), rule)
		if err != nil {
			return handleServiceError(c, err)
		}

		views = append(views, view)
	}

	return c.JSON(views)
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req RuleRequest
	if detail, ok := h.bind(c, &req); !ok {
		return badRequest(c, detail)
	}

	rule, err := h.rules.Create(c.Context(), req.toInput(), actor(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.rules.View(c.Context(), rule)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.rules.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.rules.View(c.Context(), rule)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	var req RuleRequest
	if detail, ok := h.bind(c, &req); !ok {
		return badRequest(c, detail)
	}

	rule, err := h.rules.Update(c.Context(), c.Params("id"), req.toInput(), actor(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.rules.View(c.Context(), rule)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) RunRule(c fiber.Ctx) error {
	ticket, err := h.rules.RunNow(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ticket)
}

func (h *APIHandlers) PreviewRule(c fiber.Ctx) error {
	count := defaultPreviewCount

	if countStr := c.Query("count"); countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return badRequest(c, "Invalid count: "+err.Error())
		}

		count = n
	}

	id := c.Params("id")

	instants, err := h.rules.Preview(c.Context(), id, count)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(PreviewResponse{RuleID: id, Count: len(instants), Instants: instants})
}
