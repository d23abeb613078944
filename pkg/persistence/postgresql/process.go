package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/google/uuid"
)

// ProcessRepository handles process, stage and field definition storage.
type ProcessRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProcessRepository creates a new process repository.
func NewProcessRepository(db *sql.DB, logger *slog.Logger) *ProcessRepository {
	return &ProcessRepository{db: db, logger: logger}
}

// List returns all processes ordered by name, stages and fields loaded.
func (r *ProcessRepository) List(ctx context.Context) ([]*models.Process, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM processes
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	processes := make([]*models.Process, 0)

	for rows.Next() {
		process, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}

		processes = append(processes, process)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processes: %w", err)
	}

	for _, process := range processes {
		if err := r.loadChildren(ctx, process); err != nil {
			return nil, err
		}
	}

	return processes, nil
}

func (r *ProcessRepository) GetByID(ctx context.Context, id string) (*models.Process, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewProcessError("GetByID", id, persistence.ErrProcessNotFound)
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM processes
		WHERE id = $1
	`, id)

	process, err := scanProcess(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewProcessError("GetByID", id, persistence.ErrProcessNotFound)
		}

		return nil, fmt.Errorf("failed to scan process: %w", err)
	}

	if err := r.loadChildren(ctx, process); err != nil {
		return nil, err
	}

	return process, nil
}

func scanProcess(row scanner) (*models.Process, error) {
	var process models.Process

	err := row.Scan(&process.ID, &process.Name, &process.Description, &process.CreatedAt, &process.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &process, nil
}

func (r *ProcessRepository) loadChildren(ctx context.Context, process *models.Process) error {
	stages, err := r.loadStages(ctx, process.ID)
	if err != nil {
		return fmt.Errorf("failed to load stages of process %s: %w", process.ID, err)
	}

	fields, err := r.loadFields(ctx, process.ID)
	if err != nil {
		return fmt.Errorf("failed to load fields of process %s: %w", process.ID, err)
	}

	process.Stages = stages
	process.Fields = fields

	return nil
}

func (r *ProcessRepository) loadStages(ctx context.Context, processID string) ([]*models.Stage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, process_id, name, description, order_index, priority, color,
		       is_initial, is_final, sla_hours, allowed_transitions
		FROM stages
		WHERE process_id = $1
		ORDER BY order_index, id
	`, processID)
	if err != nil {
		return nil, err
	}

	defer closeRows(ctx, r.logger, rows)

	stages := make([]*models.Stage, 0)

	for rows.Next() {
		var (
			stage       models.Stage
			slaHours    sql.NullInt64
			transitions []byte
		)

		err := rows.Scan(&stage.ID, &stage.ProcessID, &stage.Name, &stage.Description, &stage.OrderIndex,
			&stage.Priority, &stage.Color, &stage.IsInitial, &stage.IsFinal, &slaHours, &transitions)
		if err != nil {
			return nil, err
		}

		if slaHours.Valid {
			hours := int(slaHours.Int64)
			stage.SLAHours = &hours
		}

		if err := json.Unmarshal(transitions, &stage.AllowedTransitions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allowed transitions: %w", err)
		}

		stages = append(stages, &stage)
	}

	return stages, rows.Err()
}

func (r *ProcessRepository) loadFields(ctx context.Context, processID string) ([]*models.FieldDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, process_id, name, label, field_type, options, is_required, is_system_field, order_index
		FROM field_definitions
		WHERE process_id = $1
		ORDER BY order_index, id
	`, processID)
	if err != nil {
		return nil, err
	}

	defer closeRows(ctx, r.logger, rows)

	fields := make([]*models.FieldDefinition, 0)

	for rows.Next() {
		var (
			field   models.FieldDefinition
			options []byte
		)

		err := rows.Scan(&field.ID, &field.ProcessID, &field.Name, &field.Label, &field.Type, &options,
			&field.IsRequired, &field.IsSystemField, &field.OrderIndex)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(options, &field.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal field options: %w", err)
		}

		fields = append(fields, &field)
	}

	return fields, rows.Err()
}

// Save upserts a process and replaces its stages and fields in one transaction.
func (r *ProcessRepository) Save(ctx context.Context, process *models.Process) (err error) {
	now := time.Now().UTC()

	if process.CreatedAt.IsZero() {
		process.CreatedAt = now
	}

	process.UpdatedAt = now

	if process.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate process ID: %w", err)
		}

		process.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO processes (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`, process.ID, process.Name, process.Description, process.CreatedAt, process.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save process base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM stages WHERE process_id = $1", process.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing stages: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM field_definitions WHERE process_id = $1", process.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing fields: %w", err)
	}

	if err = saveStages(ctx, tx, process); err != nil {
		return err
	}

	if err = saveFields(ctx, tx, process); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func saveStages(ctx context.Context, tx *sql.Tx, process *models.Process) error {
	for _, stage := range process.Stages {
		if stage.ID == "" {
			stage.ID = uuid.NewString()
		}

		stage.ProcessID = process.ID

		transitions := stage.AllowedTransitions
		if transitions == nil {
			transitions = []string{}
		}

		transitionsJSON, err := json.Marshal(transitions)
		if err != nil {
			return fmt.Errorf("failed to marshal allowed transitions: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stages (id, process_id, name, description, order_index, priority, color,
			                    is_initial, is_final, sla_hours, allowed_transitions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, stage.ID, stage.ProcessID, stage.Name, stage.Description, stage.OrderIndex, stage.Priority, stage.Color,
			stage.IsInitial, stage.IsFinal, stage.SLAHours, transitionsJSON)
		if err != nil {
			return fmt.Errorf("failed to save stage %s: %w", stage.ID, err)
		}
	}

	return nil
}

func saveFields(ctx context.Context, tx *sql.Tx, process *models.Process) error {
	for _, field := range process.Fields {
		if field.ID == "" {
			field.ID = uuid.NewString()
		}

		field.ProcessID = process.ID

		options := field.Options
		if options == nil {
			options = []string{}
		}

		optionsJSON, err := json.Marshal(options)
		if err != nil {
			return fmt.Errorf("failed to marshal field options: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO field_definitions (id, process_id, name, label, field_type, options,
			                               is_required, is_system_field, order_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, field.ID, field.ProcessID, field.Name, field.Label, field.Type, optionsJSON,
			field.IsRequired, field.IsSystemField, field.OrderIndex)
		if err != nil {
			return fmt.Errorf("failed to save field %s: %w", field.ID, err)
		}
	}

	return nil
}
