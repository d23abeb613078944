package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/google/uuid"
)

const processesDir = "processes"

// ProcessRepository stores each process, stages and fields included, in one file.
type ProcessRepository struct {
	fp *Persistence
}

// List returns all processes ordered by name.
func (r *ProcessRepository) List(_ context.Context) ([]*models.Process, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	ids, err := r.fp.ids(processesDir)
	if err != nil {
		return nil, err
	}

	processes := make([]*models.Process, 0, len(ids))

	for _, id := range ids {
		var process models.Process
		if err := r.fp.read(processesDir, id, &process); err != nil {
			return nil, fmt.Errorf("failed to load process %s: %w", id, err)
		}

		processes = append(processes, &process)
	}

	sort.Slice(processes, func(i, j int) bool {
		if processes[i].Name != processes[j].Name {
			return processes[i].Name < processes[j].Name
		}

		return processes[i].ID < processes[j].ID
	})

	return processes, nil
}

func (r *ProcessRepository) GetByID(_ context.Context, id string) (*models.Process, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	var process models.Process
	if err := r.fp.read(processesDir, id, &process); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewProcessError("GetByID", id, persistence.ErrProcessNotFound)
		}

		return nil, err
	}

	return &process, nil
}

// Save stores a process. Missing ids are generated for the process, its stages
// and its fields, and ownership ids are filled in.
func (r *ProcessRepository) Save(_ context.Context, process *models.Process) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	now := time.Now().UTC()

	if process.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate process ID: %w", err)
		}

		process.ID = id.String()
	}

	if process.CreatedAt.IsZero() {
		process.CreatedAt = now
	}

	process.UpdatedAt = now

	for _, stage := range process.Stages {
		if stage.ID == "" {
			stage.ID = uuid.NewString()
		}

		stage.ProcessID = process.ID
	}

	for _, field := range process.Fields {
		if field.ID == "" {
			field.ID = uuid.NewString()
		}

		field.ProcessID = process.ID
	}

	return r.fp.write(processesDir, process.ID, process)
}
