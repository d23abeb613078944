// Package fieldmap translates ticket data between human-readable field names and
// the field identifiers persisted on tickets.
package fieldmap

import (
	"reflect"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/google/uuid"
)

// Mapper is an explicit bidirectional name<->id map for one process, built once per
// process load.
type Mapper struct {
	defs    []*models.FieldDefinition
	byName  map[string]string
	byLabel map[string]string
	byID    map[string]*models.FieldDefinition
}

// New builds a Mapper from a process's field definitions. An exact name match
// always wins over a label match.
func New(defs []*models.FieldDefinition) *Mapper {
	m := &Mapper{
		defs:    defs,
		byName:  make(map[string]string, len(defs)),
		byLabel: make(map[string]string, len(defs)),
		byID:    make(map[string]*models.FieldDefinition, len(defs)),
	}

	for _, def := range defs {
		m.byID[def.ID] = def

		if def.Name != "" {
			if _, exists := m.byName[def.Name]; !exists {
				m.byName[def.Name] = def.ID
			}
		}

		if def.Label != "" {
			if _, exists := m.byLabel[def.Label]; !exists {
				m.byLabel[def.Label] = def.ID
			}
		}
	}

	return m
}

// Definitions returns the field definitions the mapper was built from.
func (m *Mapper) Definitions() []*models.FieldDefinition {
	return m.defs
}

// Lookup resolves a field name or label to its id.
func (m *Mapper) Lookup(key string) (string, bool) {
	if id, ok := m.byName[key]; ok {
		return id, true
	}

	id, ok := m.byLabel[key]

	return id, ok
}

// HasID reports whether id is a field of the process.
func (m *Mapper) HasID(id string) bool {
	_, ok := m.byID[id]

	return ok
}

// NameOf returns the field name for id.
func (m *Mapper) NameOf(id string) (string, bool) {
	def, ok := m.byID[id]
	if !ok || def.Name == "" {
		return "", false
	}

	return def.Name, true
}

// ToStoredKeys converts name-keyed data into id-keyed data. Empty values are
// skipped. Known field ids, including client-supplied ones, pass through.
// Keys that are neither a known name/label/id nor UUID-shaped are dropped and
// returned so the caller can report them.
func (m *Mapper) ToStoredKeys(named map[string]any) (map[string]any, []string) {
	stored := make(map[string]any, len(named))

	var dropped []string

	for key, value := range named {
		if IsEmpty(value) {
			continue
		}

		if id, ok := m.Lookup(key); ok {
			stored[id] = value

			continue
		}

		if m.HasID(key) || IsFieldID(key) {
			stored[key] = value

			continue
		}

		dropped = append(dropped, key)
	}

	return stored, dropped
}

// ToNamedKeys converts id-keyed data back into name-keyed data for editing.
// Ids unknown to the process pass through unchanged.
func (m *Mapper) ToNamedKeys(stored map[string]any) map[string]any {
	named := make(map[string]any, len(stored))

	for key, value := range stored {
		if def, ok := m.byID[key]; ok && def.Name != "" {
			named[def.Name] = value

			continue
		}

		named[key] = value
	}

	return named
}

// IsFieldID reports whether s has the canonical 36-character UUID shape.
func IsFieldID(s string) bool {
	if len(s) != 36 {
		return false
	}

	_, err := uuid.Parse(s)

	return err == nil
}

// IsEmpty reports whether a value counts as absent: nil, "", or an empty
// slice, array or map.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}

	if s, ok := value.(string); ok {
		return s == ""
	}

	v := reflect.ValueOf(value)

	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
