// Package workflow implements the stage graph of a process and the rules for moving
// tickets along it or across processes.
package workflow

import (
	"fmt"
	"sort"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
)

// Graph is an immutable view of one fully loaded process. It is built per
// operation and discarded afterwards.
type Graph struct {
	process *models.Process
	stages  []*models.Stage
	byID    map[string]*models.Stage
}

// NewGraph indexes the stages of process, ordered by order_index then id.
func NewGraph(process *models.Process) *Graph {
	stages := make([]*models.Stage, len(process.Stages))
	copy(stages, process.Stages)

	sort.SliceStable(stages, func(i, j int) bool {
		if stages[i].OrderIndex != stages[j].OrderIndex {
			return stages[i].OrderIndex < stages[j].OrderIndex
		}

		return stages[i].ID < stages[j].ID
	})

	byID := make(map[string]*models.Stage, len(stages))
	for _, stage := range stages {
		byID[stage.ID] = stage
	}

	return &Graph{process: process, stages: stages, byID: byID}
}

// Process returns the process the graph was built from.
func (g *Graph) Process() *models.Process {
	return g.process
}

// Stages returns the stages in order.
func (g *Graph) Stages() []*models.Stage {
	return g.stages
}

// Stage returns the stage with the given id, or nil when it is not part of the process.
func (g *Graph) Stage(id string) *models.Stage {
	return g.byID[id]
}

// HasStage reports whether id is a stage of the process.
func (g *Graph) HasStage(id string) bool {
	_, ok := g.byID[id]

	return ok
}

// CanTransition reports whether a ticket may move from one stage to another.
// With validate unset any in-process target is accepted. Unknown stages yield false.
func (g *Graph) CanTransition(fromID, toID string, validate bool) bool {
	from, ok := g.byID[fromID]
	if !ok || !g.HasStage(toID) {
		return false
	}

	if !validate {
		return true
	}

	return from.Allows(toID)
}

// InitialStage resolves where new and migrated tickets land: the lowest
// order_index among stages marked initial, or the lowest order_index overall
// when none is marked.
func (g *Graph) InitialStage() (*models.Stage, error) {
	if len(g.stages) == 0 {
		return nil, ErrProcessHasNoStages
	}

	for _, stage := range g.stages {
		if stage.IsInitial {
			return stage, nil
		}
	}

	return g.stages[0], nil
}

// FinalStages returns the stages that mark ticket completion.
func (g *Graph) FinalStages() []*models.Stage {
	final := make([]*models.Stage, 0)

	for _, stage := range g.stages {
		if stage.IsFinal {
			final = append(final, stage)
		}
	}

	return final
}

// Validate checks that every allowed transition targets a stage of this process.
func (g *Graph) Validate() error {
	for _, stage := range g.stages {
		if stage.ProcessID != "" && g.process.ID != "" && stage.ProcessID != g.process.ID {
			return fmt.Errorf("%w: stage %s belongs to process %s", ErrInvalidGraph, stage.ID, stage.ProcessID)
		}

		for _, target := range stage.AllowedTransitions {
			if !g.HasStage(target) {
				return fmt.Errorf("%w: stage %s allows transition to unknown stage %s", ErrInvalidGraph, stage.ID, target)
			}
		}
	}

	return nil
}
