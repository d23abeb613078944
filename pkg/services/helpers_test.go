package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/mocks"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence/file"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/services"
	"github.com/coderAhmedHamood/pipefy/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx       context.Context
	store     persistence.Persistence
	clock     *clockwork.FakeClock
	notifier  *mocks.MockNotifier
	metrics   *metrics.Collector
	processes *services.Processes
	tickets   *services.Tickets
	rules     *services.Rules
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(t *testing.T, opts ...services.Option) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		clock:    clockwork.NewFakeClockAt(testNow),
		notifier: &mocks.MockNotifier{},
		metrics:  metrics.NewCollector(),
	}

	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return()

	logger := testLogger()
	options := append([]services.Option{
		services.WithClock(f.clock),
		services.WithNotifier(f.notifier),
		services.WithMetrics(f.metrics),
	}, opts...)

	f.processes = services.NewProcesses(store.ProcessRepository(), logger, options...)
	f.tickets = services.NewTickets(store.ProcessRepository(), store.TicketRepository(), logger, options...)

	sched := scheduler.New(store.RuleRepository(), store.ProcessRepository(), f.tickets, logger,
		scheduler.WithClock(f.clock),
		scheduler.WithMetrics(f.metrics),
	)
	f.rules = services.NewRules(store.RuleRepository(), store.ProcessRepository(), sched, logger, options...)

	return f
}

// saveProcess stores a process bypassing the service.
func (f *fixture) saveProcess(t *testing.T, process *models.Process) *models.Process {
	t.Helper()

	require.NoError(t, f.store.ProcessRepository().Save(f.ctx, process))

	return process
}

func (f *fixture) linear(t *testing.T) *models.Process {
	t.Helper()

	return f.saveProcess(t, testutil.LinearProcess())
}

func (f *fixture) createTicket(t *testing.T, process *models.Process) *models.Ticket {
	t.Helper()

	ticket, err := f.tickets.Create(f.ctx, models.TicketDraft{
		ProcessID: process.ID,
		Title:     "Printer on fire",
		Data:      map[string]any{"customer": "ACME"},
		CreatedBy: "user-1",
	})
	require.NoError(t, err)

	return ticket
}
