package events

import (
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CoversEveryType(t *testing.T) {
	t.Parallel()

	for _, eventType := range AllTypes {
		event := New(eventType)
		require.NotNil(t, event, eventType)

		typed, ok := event.(interface{ GetType() EventType })
		require.True(t, ok)
		assert.Equal(t, eventType, typed.GetType())
	}

	assert.Nil(t, New("ticket.deleted"))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	assignee := "user-2"
	ticket := &models.Ticket{
		ID:             "ticket-1",
		TicketNumber:   "TCK-000042",
		ProcessID:      "process-1",
		CurrentStageID: "stage-done",
		Title:          "Renew contract",
		Priority:       models.PriorityHigh,
		AssignedTo:     &assignee,
		CompletedAt:    &at,
	}

	created := NewTicketCreated(ticket, "user-1", models.OriginRecurringRule, "rule-1", at)
	assert.Equal(t, TicketCreatedEvent, created.Type)
	assert.Equal(t, "TCK-000042", created.TicketNumber)
	assert.Equal(t, "rule-1", created.OriginID)
	assert.Equal(t, &assignee, created.AssignedTo)
	assert.NotEmpty(t, created.ID)

	moved := NewTicketMoved(ticket, "user-1", "stage-review", "Review", "Done", "ship it", at)
	assert.Equal(t, "stage-done", moved.StageID)
	assert.Equal(t, "stage-review", moved.FromStageID)

	completed := NewTicketCompleted(ticket, "user-1", at.Add(time.Minute))
	assert.Equal(t, at, completed.CompletedAt)

	migrated := NewTicketMigrated(ticket, "user-1", "process-0", "stage-x", []string{"legacy"}, at)
	assert.Equal(t, "process-0", migrated.FromProcessID)
	assert.Equal(t, []string{"legacy"}, migrated.OrphanedFields)
}
