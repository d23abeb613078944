package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/fieldmap"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
)

// MigrateRequest asks to move a ticket into another process.
type MigrateRequest struct {
	TargetProcessID string
	Actor           string

	// RemapFields carries values over to target fields with the same name. Without
	// it data stays keyed by the source process's field ids.
	RemapFields bool
}

// MigrationPlan is the complete state change of an accepted migration.
type MigrationPlan struct {
	Ticket        *models.Ticket // updated copy
	SourceStage   *models.Stage
	TargetStage   *models.Stage
	Activity      *models.Activity
	OrphanedField []string // data keys unknown to the target process
}

// PlanMigration re-anchors a ticket at the initial stage of another process,
// bypassing the source process's stage graph.
func PlanMigration(ticket *models.Ticket, source, target *Graph, req MigrateRequest, now time.Time) (*MigrationPlan, error) {
	reject := func(err error) error {
		return &TransitionError{
			Op:       "migrate",
			TicketID: ticket.ID,
			From:     ticket.ProcessID,
			To:       req.TargetProcessID,
			Err:      err,
		}
	}

	if req.TargetProcessID == ticket.ProcessID {
		return nil, reject(ErrAlreadyInProcess)
	}

	initial, err := target.InitialStage()
	if err != nil {
		return nil, reject(err)
	}

	updated := ticket.Clone()
	updated.ProcessID = target.Process().ID
	updated.CurrentStageID = initial.ID
	updated.UpdatedAt = now

	if initial.IsFinal {
		completedAt := now
		updated.CompletedAt = &completedAt
	} else {
		updated.CompletedAt = nil
	}

	targetMapper := fieldmap.New(target.Process().Fields)

	if req.RemapFields {
		updated.Data = remapData(ticket.Data, fieldmap.New(source.Process().Fields), targetMapper)
	}

	orphaned := make([]string, 0)

	for key := range updated.Data {
		if !targetMapper.HasID(key) {
			orphaned = append(orphaned, key)
		}
	}

	sort.Strings(orphaned)

	sourceStage := source.Stage(ticket.CurrentStageID)

	sourceStageName := ticket.CurrentStageID
	if sourceStage != nil {
		sourceStageName = sourceStage.Name
	}

	return &MigrationPlan{
		Ticket:      updated,
		SourceStage: sourceStage,
		TargetStage: initial,
		Activity: &models.Activity{
			TicketID: ticket.ID,
			Actor:    req.Actor,
			Type:     models.ActivityProcessChanged,
			Description: fmt.Sprintf("Moved from process %q (%s) to process %q (%s)",
				source.Process().Name, sourceStageName, target.Process().Name, initial.Name),
			Metadata: map[string]any{
				"from_process_id":   ticket.ProcessID,
				"from_process_name": source.Process().Name,
				"from_stage_id":     ticket.CurrentStageID,
				"from_stage_name":   sourceStageName,
				"to_process_id":     target.Process().ID,
				"to_process_name":   target.Process().Name,
				"to_stage_id":       initial.ID,
				"to_stage_name":     initial.Name,
				"remap_fields":      req.RemapFields,
				"orphaned_fields":   len(orphaned),
			},
			CreatedAt: now,
		},
		OrphanedField: orphaned,
	}, nil
}

// remapData moves values to target field ids sharing a source field's name.
// Values without a counterpart keep their source id.
func remapData(data map[string]any, source, target *fieldmap.Mapper) map[string]any {
	remapped := make(map[string]any, len(data))

	for id, value := range data {
		if name, ok := source.NameOf(id); ok {
			if targetID, found := target.Lookup(name); found {
				remapped[targetID] = value

				continue
			}
		}

		remapped[id] = value
	}

	return remapped
}
