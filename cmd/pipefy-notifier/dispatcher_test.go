package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/coderAhmedHamood/pipefy/pkg/channels/gochannel"
	"github.com/coderAhmedHamood/pipefy/pkg/eventbus"
	"github.com/coderAhmedHamood/pipefy/pkg/events"
	"github.com/coderAhmedHamood/pipefy/pkg/mocks"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// syncBuffer guards a buffer written from the event bus goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func newTestDispatcher() (*Dispatcher, *syncBuffer) {
	out := &syncBuffer{}

	return NewDispatcher(slog.New(slog.NewTextHandler(out, nil))), out
}

func testTicket() *models.Ticket {
	assignee := "user-2"

	return &models.Ticket{
		ID:             "ticket-1",
		TicketNumber:   "TCK-000001",
		ProcessID:      "process-1",
		CurrentStageID: "stage-done",
		Title:          "Check backups",
		Priority:       models.PriorityHigh,
		AssignedTo:     &assignee,
	}
}

func TestDispatcher_Handle(t *testing.T) {
	t.Parallel()

	ticket := testTicket()

	tests := []struct {
		name  string
		event any
		want  []string
	}{
		{
			name:  "created",
			event: events.NewTicketCreated(ticket, "user-1", models.OriginRecurringRule, "rule-1", testNow),
			want:  []string{`msg="Ticket created"`, "origin=recurring_rule", "assigned_to=user-2"},
		},
		{
			name:  "moved",
			event: events.NewTicketMoved(ticket, "user-1", "stage-review", "Review", "Done", "", testNow),
			want:  []string{`msg="Ticket moved"`, "from_stage=Review", "to_stage=Done", "actor=user-1"},
		},
		{
			name:  "completed",
			event: events.NewTicketCompleted(ticket, "user-1", testNow),
			want:  []string{`msg="Ticket completed"`, "ticket_number=TCK-000001"},
		},
		{
			name:  "reopened",
			event: events.NewTicketReopened(ticket, "", testNow),
			want:  []string{`msg="Ticket reopened"`, "stage_id=stage-done"},
		},
		{
			name:  "migrated",
			event: events.NewTicketMigrated(ticket, "user-1", "process-0", "stage-old", []string{"legacy"}, testNow),
			want:  []string{`msg="Ticket migrated"`, "from_process_id=process-0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dispatcher, out := newTestDispatcher()

			require.NoError(t, dispatcher.Handle(t.Context(), tt.event))

			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestDispatcher_HandleRejectsUnknownEvents(t *testing.T) {
	t.Parallel()

	dispatcher, _ := newTestDispatcher()

	err := dispatcher.Handle(t.Context(), "not an event")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported event string")
}

func TestDispatcher_RegisterEveryType(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("Handle", mock.Anything, mock.Anything).Return(nil)

	dispatcher, _ := newTestDispatcher()

	require.NoError(t, dispatcher.Register(bus))

	bus.AssertNumberOfCalls(t, "Handle", len(events.AllTypes))

	for _, eventType := range events.AllTypes {
		bus.AssertCalled(t, "Handle", eventType, mock.Anything)
	}
}

func TestDispatcher_ReceivesPublishedEvents(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = bus.Close() })

	dispatcher, out := newTestDispatcher()
	require.NoError(t, dispatcher.Register(bus))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	ticket := testTicket()
	require.NoError(t, bus.Publish(ctx, ticket.ID, events.NewTicketCompleted(ticket, "user-1", testNow)))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), `msg="Ticket completed"`)
	}, 2*time.Second, 10*time.Millisecond)
}
