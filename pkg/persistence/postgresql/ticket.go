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

const ticketColumns = `
	id, ticket_number, process_id, current_stage_id, title, description, status, priority,
	ticket_type, assigned_to, created_by, due_date, data, completed_at, created_at, updated_at
`

// TicketRepository handles tickets and their activity history.
type TicketRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sql.DB, logger *slog.Logger) *TicketRepository {
	return &TicketRepository{db: db, logger: logger}
}

func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket, activity *models.Activity) (err error) {
	if ticket.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate ticket ID: %w", err)
		}

		ticket.ID = id.String()
	}

	dataJSON, err := marshalData(ticket.Data)
	if err != nil {
		return err
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

	if ticket.TicketNumber == "" {
		var next int64

		err = tx.QueryRowContext(ctx, "SELECT nextval('ticket_number_seq')").Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to allocate ticket number: %w", err)
		}

		ticket.TicketNumber = models.FormatTicketNumber(next)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, ticket.ID, ticket.TicketNumber, ticket.ProcessID, ticket.CurrentStageID, ticket.Title, ticket.Description,
		ticket.Status, ticket.Priority, ticket.Type, ticket.AssignedTo, ticket.CreatedBy, ticket.DueDate,
		dataJSON, ticket.CompletedAt, ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	if activity != nil {
		activity.TicketID = ticket.ID
		if err = insertActivity(ctx, tx, activity); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewTicketError("GetByID", id, persistence.ErrTicketNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTicketError("GetByID", id, persistence.ErrTicketNotFound)
		}

		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	return ticket, nil
}

// Update applies the ticket change only while the stored row still sits at
// expected; the activity is written in the same transaction.
func (r *TicketRepository) Update(
	ctx context.Context,
	ticket *models.Ticket,
	expected persistence.Position,
	activity *models.Activity,
) (err error) {
	dataJSON, err := marshalData(ticket.Data)
	if err != nil {
		return err
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

	result, err := tx.ExecContext(ctx, `
		UPDATE tickets SET
			process_id = $2,
			current_stage_id = $3,
			title = $4,
			description = $5,
			status = $6,
			priority = $7,
			ticket_type = $8,
			assigned_to = $9,
			due_date = $10,
			data = $11,
			completed_at = $12,
			updated_at = $13
		WHERE id = $1 AND process_id = $14 AND current_stage_id = $15
	`, ticket.ID, ticket.ProcessID, ticket.CurrentStageID, ticket.Title, ticket.Description, ticket.Status,
		ticket.Priority, ticket.Type, ticket.AssignedTo, ticket.DueDate, dataJSON, ticket.CompletedAt,
		ticket.UpdatedAt, expected.ProcessID, expected.StageID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		err = r.missingOrMoved(ctx, tx, ticket.ID)

		return err
	}

	if activity != nil {
		activity.TicketID = ticket.ID
		if err = insertActivity(ctx, tx, activity); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *TicketRepository) missingOrMoved(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool

	err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check ticket existence: %w", err)
	}

	if !exists {
		return persistence.NewTicketError("Update", id, persistence.ErrTicketNotFound)
	}

	return persistence.NewTicketError("Update", id, persistence.ErrConcurrentUpdate)
}

// Activities returns the ticket's activities, oldest first.
func (r *TicketRepository) Activities(ctx context.Context, ticketID string) ([]*models.Activity, error) {
	if _, err := r.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ticket_id, actor, activity_type, description, metadata, created_at
		FROM ticket_activities
		WHERE ticket_id = $1
		ORDER BY created_at, id
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	activities := make([]*models.Activity, 0)

	for rows.Next() {
		var (
			activity models.Activity
			metadata []byte
		)

		err := rows.Scan(&activity.ID, &activity.TicketID, &activity.Actor, &activity.Type,
			&activity.Description, &metadata, &activity.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		if err := json.Unmarshal(metadata, &activity.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
		}

		activities = append(activities, &activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, activity *models.Activity) error {
	if activity.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate activity ID: %w", err)
		}

		activity.ID = id.String()
	}

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	metadata := activity.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_activities (id, ticket_id, actor, activity_type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.TicketID, activity.Actor, activity.Type, activity.Description, metadataJSON,
		activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

func scanTicket(row scanner) (*models.Ticket, error) {
	var (
		ticket     models.Ticket
		assignedTo sql.NullString
		dueDate    sql.NullTime
		completed  sql.NullTime
		data       []byte
	)

	err := row.Scan(&ticket.ID, &ticket.TicketNumber, &ticket.ProcessID, &ticket.CurrentStageID, &ticket.Title,
		&ticket.Description, &ticket.Status, &ticket.Priority, &ticket.Type, &assignedTo, &ticket.CreatedBy,
		&dueDate, &data, &completed, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		ticket.AssignedTo = &assignedTo.String
	}

	if dueDate.Valid {
		ticket.DueDate = &dueDate.Time
	}

	if completed.Valid {
		ticket.CompletedAt = &completed.Time
	}

	if err := json.Unmarshal(data, &ticket.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket data: %w", err)
	}

	return &ticket, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ticket data: %w", err)
	}

	return dataJSON, nil
}
