// Package models defines the core domain models for process-based ticket workflows.
package models

import (
	"slices"
	"time"
)

// Process is a workflow template: the stages a ticket moves through and the
// fields stored on its tickets.
type Process struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"        validate:"required,min=2"`
	Description string             `json:"description"`
	Stages      []*Stage           `json:"stages"      validate:"min=1,dive"`
	Fields      []*FieldDefinition `json:"fields"      validate:"dive"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Stage is a node in a process graph. AllowedTransitions holds the ids of the
// stages a ticket may move to from this one.
type Stage struct {
	ID                 string   `json:"id"`
	ProcessID          string   `json:"process_id"`
	Name               string   `json:"name"                validate:"required"`
	Description        string   `json:"description,omitempty"`
	OrderIndex         int      `json:"order_index"`
	Priority           int      `json:"priority"`
	Color              string   `json:"color,omitempty"`
	IsInitial          bool     `json:"is_initial"`
	IsFinal            bool     `json:"is_final"`
	SLAHours           *int     `json:"sla_hours,omitempty"  validate:"omitempty,min=1"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

// Allows reports whether the stage lists targetID as an outgoing transition.
func (s *Stage) Allows(targetID string) bool {
	return slices.Contains(s.AllowedTransitions, targetID)
}

// FieldType is the declared type of a process field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeEmail       FieldType = "email"
	FieldTypeURL         FieldType = "url"
	FieldTypePhone       FieldType = "phone"
	FieldTypeNumber      FieldType = "number"
	FieldTypeCurrency    FieldType = "currency"
	FieldTypeCheckbox    FieldType = "checkbox"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeSelect      FieldType = "select"
	FieldTypeRadio       FieldType = "radio"
	FieldTypeMultiselect FieldType = "multiselect"
	FieldTypeDate        FieldType = "date"
	FieldTypeDatetime    FieldType = "datetime"
)

// FieldDefinition describes one field of a process. Ticket data references it by ID.
type FieldDefinition struct {
	ID            string    `json:"id"`
	ProcessID     string    `json:"process_id"`
	Name          string    `json:"name"            validate:"required"`
	Label         string    `json:"label,omitempty"`
	Type          FieldType `json:"type"            validate:"required,oneof=text textarea email url phone number currency checkbox boolean select radio multiselect date datetime"`
	Options       []string  `json:"options,omitempty"`
	IsRequired    bool      `json:"is_required"`
	IsSystemField bool      `json:"is_system_field"`
	OrderIndex    int       `json:"order_index"`
}

// StageByID returns the stage with the given id, or nil.
func (p *Process) StageByID(id string) *Stage {
	for _, stage := range p.Stages {
		if stage.ID == id {
			return stage
		}
	}

	return nil
}
