package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	fp := NewPersistence("/tmp/test").(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test").(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.Error(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(t.Context()))
}

func TestProcessRepository(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).ProcessRepository()
	ctx := t.Context()

	process := testutil.LinearProcess()
	require.NoError(t, repo.Save(ctx, process))

	loaded, err := repo.GetByID(ctx, process.ID)
	require.NoError(t, err)
	assert.Equal(t, process.Name, loaded.Name)
	require.Len(t, loaded.Stages, 3)
	assert.Equal(t, process.Stages[0].AllowedTransitions, loaded.Stages[0].AllowedTransitions)
	require.Len(t, loaded.Fields, 1)
	assert.Equal(t, "customer", loaded.Fields[0].Name)

	other := testutil.CreateTestProcess("Another", nil)
	other.ID = ""
	require.NoError(t, repo.Save(ctx, other))
	assert.NotEmpty(t, other.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Another", all[0].Name)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrProcessNotFound)
}

func TestTicketRepository_CreateAndUpdate(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).TicketRepository()
	ctx := t.Context()

	process := testutil.LinearProcess()
	newStage, review := process.Stages[0], process.Stages[1]

	ticket := testutil.CreateTestTicket(process, newStage, func(t *models.Ticket) {
		t.ID = ""
		t.TicketNumber = ""
	})
	require.NoError(t, repo.Create(ctx, ticket, &models.Activity{Type: models.ActivityCreated, Actor: "user-1"}))
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "TCK-000001", ticket.TicketNumber)

	second := testutil.CreateTestTicket(process, newStage, func(t *models.Ticket) { t.TicketNumber = "" })
	require.NoError(t, repo.Create(ctx, second, nil))
	assert.Equal(t, "TCK-000002", second.TicketNumber)

	moved := ticket.Clone()
	moved.CurrentStageID = review.ID

	expected := persistence.Position{ProcessID: process.ID, StageID: newStage.ID}
	require.NoError(t, repo.Update(ctx, moved, expected, &models.Activity{Type: models.ActivityStageChanged}))

	loaded, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, review.ID, loaded.CurrentStageID)

	// a second writer still expecting the old stage loses
	err = repo.Update(ctx, moved, expected, &models.Activity{Type: models.ActivityStageChanged})
	assert.ErrorIs(t, err, persistence.ErrConcurrentUpdate)

	activities, err := repo.Activities(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, models.ActivityCreated, activities[0].Type)
	assert.Equal(t, models.ActivityStageChanged, activities[1].Type)
	assert.Equal(t, ticket.ID, activities[1].TicketID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrTicketNotFound)

	_, err = repo.Activities(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrTicketNotFound)
}

func TestTicketRepository_UpdateRollsBackWhenActivityFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := NewPersistence(root).TicketRepository()
	ctx := t.Context()

	process := testutil.LinearProcess()
	ticket := testutil.CreateTestTicket(process, process.Stages[0])
	require.NoError(t, repo.Create(ctx, ticket, nil))

	// a directory in place of the activity file makes the append fail
	require.NoError(t, os.MkdirAll(filepath.Join(root, activitiesDir, ticket.ID+".json"), 0750))

	moved := ticket.Clone()
	moved.CurrentStageID = process.Stages[1].ID

	err := repo.Update(ctx, moved, persistence.Position{ProcessID: process.ID, StageID: process.Stages[0].ID},
		&models.Activity{Type: models.ActivityStageChanged})
	require.Error(t, err)

	loaded, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, process.Stages[0].ID, loaded.CurrentStageID)
}

func TestRuleRepository_ClaimLifecycle(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).RuleRepository()
	ctx := t.Context()
	now := time.Now().UTC()

	rule := testutil.CreateTestRule("process-1", func(r *models.RecurringRule) {
		r.NextExecutionDate = testutil.Ptr(now.Add(-time.Minute))
	})
	require.NoError(t, repo.Save(ctx, rule))

	due, err := repo.Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := repo.Claim(ctx, rule.ID, "token-a", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, rule.ID, "token-b", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed, "live claim blocks a second claimant")

	due, err = repo.Due(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due, "claimed rules are not due")

	// an expired lease can be taken over
	claimed, err = repo.Claim(ctx, rule.ID, "token-b", now.Add(2*time.Minute), now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)

	// stale token does not release the new lease
	require.NoError(t, repo.Release(ctx, rule.ID, "token-a"))

	loaded, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ClaimToken)
	assert.Equal(t, "token-b", *loaded.ClaimToken)

	require.NoError(t, repo.Release(ctx, rule.ID, "token-b"))

	loaded, err = repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.ClaimToken)
	assert.Nil(t, loaded.ClaimedUntil)
}

func TestRuleRepository_Complete(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).RuleRepository()
	ctx := t.Context()
	now := time.Now().UTC().Truncate(time.Second)

	rule := testutil.CreateTestRule("process-1")
	require.NoError(t, repo.Save(ctx, rule))

	advanced := *rule
	advanced.ExecutionCount = 1
	advanced.LastExecutionDate = &now
	advanced.NextExecutionDate = testutil.Ptr(now.Add(24 * time.Hour))

	require.NoError(t, repo.Complete(ctx, &advanced, 0))
	assert.ErrorIs(t, repo.Complete(ctx, &advanced, 0), persistence.ErrConcurrentUpdate)

	// operator saves never reset execution state
	edited := *rule
	edited.Name = "Renamed"
	edited.ExecutionCount = 0
	require.NoError(t, repo.Save(ctx, &edited))

	loaded, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Equal(t, 1, loaded.ExecutionCount)
	require.NotNil(t, loaded.LastExecutionDate)
	assert.True(t, now.Equal(*loaded.LastExecutionDate))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestRuleRepository_ConcurrentClaims(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).RuleRepository()
	ctx := t.Context()
	now := time.Now().UTC()

	rule := testutil.CreateTestRule("process-1")
	require.NoError(t, repo.Save(ctx, rule))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := repo.Claim(ctx, rule.ID, "token", now, now.Add(time.Minute))
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, wins)
}
