package web

import (
	"github.com/coderAhmedHamood/pipefy/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// statusByCode maps service error codes to HTTP statuses.
var statusByCode = map[string]int{
	services.CodeValidation:        fiber.StatusBadRequest,
	services.CodeInvalidTransition: fiber.StatusBadRequest,
	services.CodeAlreadyInState:    fiber.StatusBadRequest,
	services.CodeRuleNotRunnable:   fiber.StatusBadRequest,
	services.CodeForbidden:         fiber.StatusForbidden,
	services.CodeNotFound:          fiber.StatusNotFound,
	services.CodeScheduleConflict:  fiber.StatusConflict,
	services.CodeConcurrentUpdate:  fiber.StatusConflict,
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType(services.CodeValidation).
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("INTERNAL_ERROR").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError renders a service error as a problem document whose type
// is the error code.
func handleServiceError(c fiber.Ctx, err error) error {
	code := services.Code(err)

	status, ok := statusByCode[code]
	if !ok {
		return internalError(c, err)
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(code).
		WithDetail(err.Error())

	return c.Status(status).JSON(problem)
}
