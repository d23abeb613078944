// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/google/uuid"
)

// CreateTestStage creates a Stage with default values that can be overridden.
func CreateTestStage(name string, overrides ...func(*models.Stage)) *models.Stage {
	stage := &models.Stage{
		ID:                 uuid.New().String(),
		Name:               name,
		Color:              "#3b82f6",
		AllowedTransitions: []string{},
	}

	for _, override := range overrides {
		override(stage)
	}

	return stage
}

// WithInitial marks the stage as initial.
func WithInitial() func(*models.Stage) {
	return func(s *models.Stage) {
		s.IsInitial = true
	}
}

// WithFinal marks the stage as final.
func WithFinal() func(*models.Stage) {
	return func(s *models.Stage) {
		s.IsFinal = true
	}
}

// WithOrder sets the stage order index.
func WithOrder(index int) func(*models.Stage) {
	return func(s *models.Stage) {
		s.OrderIndex = index
	}
}

// WithStageID sets a fixed stage id.
func WithStageID(id string) func(*models.Stage) {
	return func(s *models.Stage) {
		s.ID = id
	}
}

// Allow adds outgoing transitions from one stage to the others.
func Allow(from *models.Stage, to ...*models.Stage) {
	for _, target := range to {
		from.AllowedTransitions = append(from.AllowedTransitions, target.ID)
	}
}

// CreateTestProcess creates a Process owning the given stages and fields.
func CreateTestProcess(name string, stages []*models.Stage, fields ...*models.FieldDefinition) *models.Process {
	now := time.Now().UTC()
	process := &models.Process{
		ID:        uuid.New().String(),
		Name:      name,
		Stages:    stages,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, stage := range stages {
		stage.ProcessID = process.ID
	}

	for _, field := range fields {
		field.ProcessID = process.ID
	}

	return process
}

// CreateTestField creates a FieldDefinition with a random id.
func CreateTestField(name string, fieldType models.FieldType) *models.FieldDefinition {
	return &models.FieldDefinition{
		ID:   uuid.New().String(),
		Name: name,
		Type: fieldType,
	}
}

// LinearProcess builds New -> Review -> Done(final), with a "customer" text field.
func LinearProcess() *models.Process {
	newStage := CreateTestStage("New", WithInitial(), WithOrder(0))
	review := CreateTestStage("Review", WithOrder(1))
	done := CreateTestStage("Done", WithFinal(), WithOrder(2))

	Allow(newStage, review)
	Allow(review, done, newStage)

	return CreateTestProcess("Support", []*models.Stage{newStage, review, done},
		CreateTestField("customer", models.FieldTypeText))
}

// CreateTestTicket creates a Ticket sitting in the given stage of process.
func CreateTestTicket(process *models.Process, stage *models.Stage, overrides ...func(*models.Ticket)) *models.Ticket {
	now := time.Now().UTC()
	ticket := &models.Ticket{
		ID:             uuid.New().String(),
		TicketNumber:   "TCK-000001",
		ProcessID:      process.ID,
		CurrentStageID: stage.ID,
		Title:          "Test ticket",
		Status:         models.TicketStatusOpen,
		Priority:       models.PriorityMedium,
		Data:           map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(ticket)
	}

	return ticket
}

// CreateTestRule creates an active daily RecurringRule for process.
func CreateTestRule(processID string, overrides ...func(*models.RecurringRule)) *models.RecurringRule {
	now := time.Now().UTC()
	rule := &models.RecurringRule{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Name:      "Daily check",
		Template: models.TicketTemplate{
			Title:    "Daily check",
			Priority: models.PriorityMedium,
			Data:     map[string]any{},
		},
		Schedule: models.Schedule{
			Type:     models.ScheduleDaily,
			Interval: 1,
			Time:     "09:00",
		},
		StartDate: now.Add(-24 * time.Hour),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(rule)
	}

	return rule
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
