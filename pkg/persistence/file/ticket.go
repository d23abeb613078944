package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/google/uuid"
)

const (
	ticketsDir    = "tickets"
	activitiesDir = "activities"
	metaDir       = "meta"
	sequenceID    = "ticket_sequence"
)

type sequence struct {
	Last int64 `json:"last"`
}

// TicketRepository stores tickets one per file and their activities as one
// append-only list per ticket.
type TicketRepository struct {
	fp *Persistence
}

func (r *TicketRepository) Create(_ context.Context, ticket *models.Ticket, activity *models.Activity) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	if ticket.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate ticket ID: %w", err)
		}

		ticket.ID = id.String()
	}

	seqSnapshot, err := r.fp.raw(metaDir, sequenceID)
	if err != nil {
		return fmt.Errorf("failed to read ticket sequence: %w", err)
	}

	if ticket.TicketNumber == "" {
		var seq sequence
		if err := r.fp.read(metaDir, sequenceID, &seq); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read ticket sequence: %w", err)
		}

		seq.Last++
		if err := r.fp.write(metaDir, sequenceID, seq); err != nil {
			return err
		}

		ticket.TicketNumber = models.FormatTicketNumber(seq.Last)
	}

	if err := r.fp.write(ticketsDir, ticket.ID, ticket); err != nil {
		_ = r.fp.restore(metaDir, sequenceID, seqSnapshot)

		return err
	}

	if activity == nil {
		return nil
	}

	activity.TicketID = ticket.ID
	if err := r.appendActivity(activity); err != nil {
		_ = r.fp.restore(ticketsDir, ticket.ID, nil)
		_ = r.fp.restore(metaDir, sequenceID, seqSnapshot)

		return err
	}

	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	return r.get("GetByID", id)
}

func (r *TicketRepository) get(op, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.fp.read(ticketsDir, id, &ticket); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewTicketError(op, id, persistence.ErrTicketNotFound)
		}

		return nil, err
	}

	return &ticket, nil
}

func (r *TicketRepository) Update(
	_ context.Context,
	ticket *models.Ticket,
	expected persistence.Position,
	activity *models.Activity,
) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	current, err := r.get("Update", ticket.ID)
	if err != nil {
		return err
	}

	if current.ProcessID != expected.ProcessID || current.CurrentStageID != expected.StageID {
		return persistence.NewTicketError("Update", ticket.ID, persistence.ErrConcurrentUpdate)
	}

	snapshot, err := r.fp.raw(ticketsDir, ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to snapshot ticket %s: %w", ticket.ID, err)
	}

	if err := r.fp.write(ticketsDir, ticket.ID, ticket); err != nil {
		return err
	}

	if activity == nil {
		return nil
	}

	activity.TicketID = ticket.ID
	if err := r.appendActivity(activity); err != nil {
		if restoreErr := r.fp.restore(ticketsDir, ticket.ID, snapshot); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("failed to restore ticket %s: %w", ticket.ID, restoreErr))
		}

		return err
	}

	return nil
}

// Activities returns the ticket's activities, oldest first.
func (r *TicketRepository) Activities(_ context.Context, ticketID string) ([]*models.Activity, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	if _, err := r.get("Activities", ticketID); err != nil {
		return nil, err
	}

	return r.activities(ticketID)
}

func (r *TicketRepository) activities(ticketID string) ([]*models.Activity, error) {
	activities := make([]*models.Activity, 0)
	if err := r.fp.read(activitiesDir, ticketID, &activities); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return activities, nil
}

func (r *TicketRepository) appendActivity(activity *models.Activity) error {
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

	activities, err := r.activities(activity.TicketID)
	if err != nil {
		return err
	}

	return r.fp.write(activitiesDir, activity.TicketID, append(activities, activity))
}
