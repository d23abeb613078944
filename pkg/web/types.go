// Package web provides HTTP request and response types for the ticket workflow API.
package web

import (
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/services"
)

// StageRequest describes one stage of a new process. AllowedTransitions may
// hold sibling stage names or ids.
type StageRequest struct {
	ID                 string   `json:"id,omitempty"`
	Name               string   `json:"name"                validate:"required,max=255"`
	Description        string   `json:"description"`
	OrderIndex         int      `json:"order_index"`
	Priority           int      `json:"priority"`
	Color              string   `json:"color"`
	IsInitial          bool     `json:"is_initial"`
	IsFinal            bool     `json:"is_final"`
	SLAHours           *int     `json:"sla_hours,omitempty"  validate:"omitempty,min=1"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

// FieldRequest describes one field of a new process.
type FieldRequest struct {
	ID            string           `json:"id,omitempty"`
	Name          string           `json:"name"            validate:"required,max=255"`
	Label         string           `json:"label"`
	Type          models.FieldType `json:"type"            validate:"required"`
	Options       []string         `json:"options"`
	IsRequired    bool             `json:"is_required"`
	IsSystemField bool             `json:"is_system_field"`
	OrderIndex    int              `json:"order_index"`
}

// CreateProcessRequest represents the request body for creating a process.
type CreateProcessRequest struct {
	Name        string          `json:"name"        validate:"required,min=2,max=255"`
	Description string          `json:"description"`
	Stages      []*StageRequest `json:"stages"      validate:"required,min=1,dive"`
	Fields      []*FieldRequest `json:"fields"      validate:"dive"`
}

func (r *CreateProcessRequest) toProcess() *models.Process {
	process := &models.Process{
		Name:        r.Name,
		Description: r.Description,
		Stages:      make([]*models.Stage, 0, len(r.Stages)),
		Fields:      make([]*models.FieldDefinition, 0, len(r.Fields)),
	}

	for _, stage := range r.Stages {
		transitions := stage.AllowedTransitions
		if transitions == nil {
			transitions = []string{}
		}

		process.Stages = append(process.Stages, &models.Stage{
			ID:                 stage.ID,
			Name:               stage.Name,
			Description:        stage.Description,
			OrderIndex:         stage.OrderIndex,
			Priority:           stage.Priority,
			Color:              stage.Color,
			IsInitial:          stage.IsInitial,
			IsFinal:            stage.IsFinal,
			SLAHours:           stage.SLAHours,
			AllowedTransitions: transitions,
		})
	}

	for _, field := range r.Fields {
		process.Fields = append(process.Fields, &models.FieldDefinition{
			ID:            field.ID,
			Name:          field.Name,
			Label:         field.Label,
			Type:          field.Type,
			Options:       field.Options,
			IsRequired:    field.IsRequired,
			IsSystemField: field.IsSystemField,
			OrderIndex:    field.OrderIndex,
		})
	}

	return process
}

// CreateTicketRequest represents the request body for creating a ticket. Data
// may be keyed by field name, label or id.
type CreateTicketRequest struct {
	ProcessID   string                `json:"process_id"  validate:"required"`
	StageID     *string               `json:"stage_id"`
	Title       string                `json:"title"       validate:"required,max=255"`
	Description string                `json:"description"`
	Priority    models.TicketPriority `json:"priority"    validate:"omitempty,oneof=low medium high urgent"`
	Type        string                `json:"type"`
	AssignedTo  *string               `json:"assigned_to"`
	DueDate     *time.Time            `json:"due_date"`
	Data        map[string]any        `json:"data"`
}

func (r *CreateTicketRequest) toDraft(actor string) models.TicketDraft {
	return models.TicketDraft{
		ProcessID:   r.ProcessID,
		StageID:     r.StageID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Type:        r.Type,
		AssignedTo:  r.AssignedTo,
		DueDate:     r.DueDate,
		Data:        r.Data,
		CreatedBy:   actor,
		Origin:      models.OriginManual,
	}
}

// MoveTicketRequest represents the request body for moving a ticket to another stage.
type MoveTicketRequest struct {
	TargetStageID       string `json:"target_stage_id"      validate:"required"`
	Comment             string `json:"comment"              validate:"max=2000"`
	ValidateTransitions *bool  `json:"validate_transitions"`
}

// MigrateTicketRequest represents the request body for moving a ticket to another process.
type MigrateTicketRequest struct {
	TargetProcessID string `json:"target_process_id" validate:"required"`
	RemapFields     bool   `json:"remap_fields"`
}

// RuleRequest represents the request body for creating or replacing a recurring rule.
type RuleRequest struct {
	ProcessID     string                `json:"process_id"     validate:"required"`
	Name          string                `json:"name"           validate:"required,min=2,max=255"`
	Description   string                `json:"description"`
	Template      models.TicketTemplate `json:"template"`
	Schedule      models.Schedule       `json:"schedule"`
	StartDate     *time.Time            `json:"start_date"`
	EndDate       *time.Time            `json:"end_date"`
	IsActive      *bool                 `json:"is_active"`
	MaxExecutions *int                  `json:"max_executions" validate:"omitempty,min=1"`
}

func (r *RuleRequest) toInput() services.RuleInput {
	return services.RuleInput{
		ProcessID:     r.ProcessID,
		Name:          r.Name,
		Description:   r.Description,
		Template:      r.Template,
		Schedule:      r.Schedule,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		IsActive:      r.IsActive,
		MaxExecutions: r.MaxExecutions,
	}
}

// PreviewResponse lists upcoming execution instants of a rule.
type PreviewResponse struct {
	RuleID   string      `json:"rule_id"`
	Count    int         `json:"count"`
	Instants []time.Time `json:"instants"`
}
