// Package file provides file-based persistence for processes, tickets and rules.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// One JSON file is kept per entity; a single lock serializes writers so that
// multi-file updates are applied as a unit.
type Persistence struct {
	root string
	mu   sync.RWMutex

	processRepo *ProcessRepository
	ticketRepo  *TicketRepository
	ruleRepo    *RuleRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.processRepo = &ProcessRepository{fp: fp}
	fp.ticketRepo = &TicketRepository{fp: fp}
	fp.ruleRepo = &RuleRepository{fp: fp}

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ProcessRepository() persistence.ProcessRepository {
	return fp.processRepo
}

func (fp *Persistence) TicketRepository() persistence.TicketRepository {
	return fp.ticketRepo
}

func (fp *Persistence) RuleRepository() persistence.RuleRepository {
	return fp.ruleRepo
}

func (fp *Persistence) path(kind, id string) string {
	return filepath.Clean(filepath.Join(fp.root, kind, id+".json"))
}

// read loads one entity. It returns an error matching fs.ErrNotExist when the
// file is missing.
func (fp *Persistence) read(kind, id string, v any) error {
	body, err := os.ReadFile(fp.path(kind, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}

	return nil
}

// raw returns the current file contents, or nil when the file does not exist.
func (fp *Persistence) raw(kind, id string) ([]byte, error) {
	body, err := os.ReadFile(fp.path(kind, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	return body, err
}

// write stores one entity through a temporary file and a rename.
func (fp *Persistence) write(kind, id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	return fp.writeRaw(kind, id, data)
}

func (fp *Persistence) writeRaw(kind, id string, data []byte) error {
	dir := filepath.Join(fp.root, kind)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close %s %s: %w", kind, id, err)
	}

	return os.Rename(tmp.Name(), fp.path(kind, id))
}

// restore puts back a snapshot taken with raw. A nil snapshot removes the file.
func (fp *Persistence) restore(kind, id string, snapshot []byte) error {
	if snapshot == nil {
		err := os.Remove(fp.path(kind, id))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	return fp.writeRaw(kind, id, snapshot)
}

// ids lists the entity ids stored under kind.
func (fp *Persistence) ids(kind string) ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(filepath.Join(fp.root, kind)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
