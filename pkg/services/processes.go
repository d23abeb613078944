package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/workflow"
	"github.com/google/uuid"
)

// Processes manages process definitions: stages, their transitions and fields.
type Processes struct {
	common

	processes persistence.ProcessRepository
}

func NewProcesses(processes persistence.ProcessRepository, logger *slog.Logger, opts ...Option) *Processes {
	return &Processes{
		common:    newCommon(logger, "process_service", opts),
		processes: processes,
	}
}

// Create stores a new process. Stages and fields without ids get one, and
// allowed transitions may name sibling stages instead of using their ids.
func (s *Processes) Create(ctx context.Context, process *models.Process, actor string) (*models.Process, error) {
	const op = "CreateProcess"

	if err := s.authorize(ctx, op, actor, ActionManageProcess, nil); err != nil {
		return nil, err
	}

	if err := s.prepare(op, process); err != nil {
		return nil, err
	}

	if err := s.processes.Save(ctx, process); err != nil {
		return nil, classify(op, err)
	}

	s.logger.InfoContext(ctx, "Process created",
		"process_id", process.ID, "stages", len(process.Stages), "fields", len(process.Fields))

	return process, nil
}

func (s *Processes) Get(ctx context.Context, id string) (*models.Process, error) {
	process, err := s.processes.GetByID(ctx, id)
	if err != nil {
		return nil, classify("GetProcess", err)
	}

	return process, nil
}

func (s *Processes) List(ctx context.Context) ([]*models.Process, error) {
	processes, err := s.processes.List(ctx)
	if err != nil {
		return nil, classify("ListProcesses", err)
	}

	return processes, nil
}

func (s *Processes) prepare(op string, process *models.Process) error {
	process.Name = strings.TrimSpace(process.Name)

	if err := s.validate.Struct(process); err != nil {
		return validationError(op, err)
	}

	if process.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate process ID: %w", err)
		}

		process.ID = id.String()
	}

	byName := make(map[string]string, len(process.Stages))

	for _, stage := range process.Stages {
		if stage.ID == "" {
			stage.ID = uuid.NewString()
		}

		stage.ProcessID = process.ID
		name := strings.ToLower(strings.TrimSpace(stage.Name))

		if _, dup := byName[name]; dup {
			return NewValidationError(op, fmt.Sprintf("duplicate stage name %q", stage.Name), ErrInvalidRequest)
		}

		byName[name] = stage.ID
	}

	stageIDs := make(map[string]bool, len(process.Stages))
	for _, stage := range process.Stages {
		stageIDs[stage.ID] = true
	}

	for _, stage := range process.Stages {
		for i, target := range stage.AllowedTransitions {
			if stageIDs[target] {
				continue
			}

			if id, ok := byName[strings.ToLower(strings.TrimSpace(target))]; ok {
				stage.AllowedTransitions[i] = id
			}
		}
	}

	fieldNames := make(map[string]bool, len(process.Fields))

	for _, field := range process.Fields {
		if field.ID == "" {
			field.ID = uuid.NewString()
		}

		field.ProcessID = process.ID

		if fieldNames[field.Name] {
			return NewValidationError(op, fmt.Sprintf("duplicate field name %q", field.Name), ErrInvalidRequest)
		}

		fieldNames[field.Name] = true
	}

	if err := workflow.NewGraph(process).Validate(); err != nil {
		return NewValidationError(op, err.Error(), err)
	}

	return nil
}
