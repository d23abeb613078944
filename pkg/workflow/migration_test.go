package workflow_test

import (
	"testing"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/testutil"
	"github.com/coderAhmedHamood/pipefy/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoProcesses() (*models.Process, *models.Process) {
	s1 := testutil.CreateTestStage("S1", testutil.WithOrder(0))
	s2 := testutil.CreateTestStage("S2", testutil.WithOrder(1))
	testutil.Allow(s1, s2)

	a := testutil.CreateTestProcess("A", []*models.Stage{s1, s2},
		testutil.CreateTestField("customer", models.FieldTypeText),
		testutil.CreateTestField("legacy_code", models.FieldTypeText),
	)

	t1 := testutil.CreateTestStage("T1", testutil.WithInitial(), testutil.WithOrder(1))
	t2 := testutil.CreateTestStage("T2", testutil.WithOrder(0))

	b := testutil.CreateTestProcess("B", []*models.Stage{t1, t2},
		testutil.CreateTestField("customer", models.FieldTypeText),
	)

	return a, b
}

func TestPlanMigration_ScenarioC(t *testing.T) {
	t.Parallel()

	a, b := twoProcesses()

	for _, stage := range a.Stages {
		t.Run("from "+stage.Name, func(t *testing.T) {
			t.Parallel()

			ticket := testutil.CreateTestTicket(a, stage)

			plan, err := workflow.PlanMigration(ticket, workflow.NewGraph(a), workflow.NewGraph(b),
				workflow.MigrateRequest{TargetProcessID: b.ID, Actor: "user-1"}, testNow)
			require.NoError(t, err)

			assert.Equal(t, b.ID, plan.Ticket.ProcessID)
			assert.Equal(t, b.Stages[0].ID, plan.Ticket.CurrentStageID, "T1 is the only initial stage")
			assert.Equal(t, "T1", plan.TargetStage.Name)
			assert.Equal(t, models.ActivityProcessChanged, plan.Activity.Type)
			assert.Equal(t, a.ID, plan.Activity.Metadata["from_process_id"])
			assert.Equal(t, stage.ID, plan.Activity.Metadata["from_stage_id"])
			assert.Equal(t, b.ID, plan.Activity.Metadata["to_process_id"])

			assert.Equal(t, a.ID, ticket.ProcessID, "input ticket is not modified")
		})
	}
}

func TestPlanMigration_Rejections(t *testing.T) {
	t.Parallel()

	a, _ := twoProcesses()
	empty := testutil.CreateTestProcess("Empty", nil)
	ticket := testutil.CreateTestTicket(a, a.Stages[0])

	_, err := workflow.PlanMigration(ticket, workflow.NewGraph(a), workflow.NewGraph(a),
		workflow.MigrateRequest{TargetProcessID: a.ID}, testNow)
	assert.ErrorIs(t, err, workflow.ErrAlreadyInProcess)

	_, err = workflow.PlanMigration(ticket, workflow.NewGraph(a), workflow.NewGraph(empty),
		workflow.MigrateRequest{TargetProcessID: empty.ID}, testNow)
	assert.ErrorIs(t, err, workflow.ErrProcessHasNoStages)
}

func TestPlanMigration_FieldData(t *testing.T) {
	t.Parallel()

	a, b := twoProcesses()
	customerA, legacyA := a.Fields[0].ID, a.Fields[1].ID
	customerB := b.Fields[0].ID

	ticket := testutil.CreateTestTicket(a, a.Stages[1], func(t *models.Ticket) {
		t.Data = map[string]any{customerA: "ACME", legacyA: "X-1"}
	})

	t.Run("data stays keyed by source ids", func(t *testing.T) {
		t.Parallel()

		plan, err := workflow.PlanMigration(ticket, workflow.NewGraph(a), workflow.NewGraph(b),
			workflow.MigrateRequest{TargetProcessID: b.ID}, testNow)
		require.NoError(t, err)

		assert.Equal(t, ticket.Data, plan.Ticket.Data)
		assert.ElementsMatch(t, []string{customerA, legacyA}, plan.OrphanedField)
	})

	t.Run("remap carries values with matching names", func(t *testing.T) {
		t.Parallel()

		plan, err := workflow.PlanMigration(ticket, workflow.NewGraph(a), workflow.NewGraph(b),
			workflow.MigrateRequest{TargetProcessID: b.ID, RemapFields: true}, testNow)
		require.NoError(t, err)

		assert.Equal(t, map[string]any{customerB: "ACME", legacyA: "X-1"}, plan.Ticket.Data)
		assert.Equal(t, []string{legacyA}, plan.OrphanedField)
	})
}

func TestPlanMigration_CompletionFollowsInitialStage(t *testing.T) {
	t.Parallel()

	a, _ := twoProcesses()
	closed := testutil.CreateTestStage("Closed", testutil.WithInitial(), testutil.WithFinal())
	archive := testutil.CreateTestProcess("Archive", []*models.Stage{closed})

	ticket := testutil.CreateTestTicket(a, a.Stages[0])

	plan, err := workflow.PlanMigration(ticket, workflow.NewGraph(a), workflow.NewGraph(archive),
		workflow.MigrateRequest{TargetProcessID: archive.ID}, testNow)
	require.NoError(t, err)
	require.NotNil(t, plan.Ticket.CompletedAt)
}
