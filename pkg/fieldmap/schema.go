package fieldmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidData indicates ticket data does not match the process field definitions.
var ErrInvalidData = errors.New("invalid field data")

// DataError lists every field that failed validation.
type DataError struct {
	Problems []string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidData, strings.Join(e.Problems, "; "))
}

func (e *DataError) Unwrap() error {
	return ErrInvalidData
}

// Schema builds a JSON schema for id-keyed data of the given fields. Unknown keys
// are allowed so data orphaned by a process migration stays valid.
func Schema(defs []*models.FieldDefinition, requireAll bool) map[string]any {
	properties := make(map[string]any, len(defs))
	required := make([]string, 0)

	for _, def := range defs {
		properties[def.ID] = propertyFor(def)

		if requireAll && def.IsRequired && !def.IsSystemField {
			required = append(required, def.ID)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}

	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}

	return schema
}

func propertyFor(def *models.FieldDefinition) map[string]any {
	switch def.Type {
	case models.FieldTypeNumber, models.FieldTypeCurrency:
		return map[string]any{"type": "number"}
	case models.FieldTypeCheckbox, models.FieldTypeBoolean:
		return map[string]any{"type": "boolean"}
	case models.FieldTypeSelect, models.FieldTypeRadio:
		property := map[string]any{"type": "string"}
		if len(def.Options) > 0 {
			property["enum"] = def.Options
		}

		return property
	case models.FieldTypeMultiselect:
		items := map[string]any{"type": "string"}
		if len(def.Options) > 0 {
			items["enum"] = def.Options
		}

		return map[string]any{"type": "array", "items": items}
	case models.FieldTypeDate:
		return map[string]any{"type": "string", "format": "date"}
	case models.FieldTypeDatetime:
		return map[string]any{"type": "string", "format": "date-time"}
	case models.FieldTypeEmail:
		return map[string]any{"type": "string", "format": "email"}
	default:
		return map[string]any{"type": "string"}
	}
}

// Validate checks id-keyed data against the process field definitions. With
// requireAll set, required non-system fields must be present.
func (m *Mapper) Validate(stored map[string]any, requireAll bool) error {
	if stored == nil {
		stored = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(Schema(m.defs, requireAll))
	dataLoader := gojsonschema.NewGoLoader(stored)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate field data: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		problems = append(problems, m.describe(resultErr))
	}

	sort.Strings(problems)

	return &DataError{Problems: problems}
}

func (m *Mapper) describe(resultErr gojsonschema.ResultError) string {
	field := resultErr.Field()

	if property, ok := resultErr.Details()["property"].(string); ok && field == "(root)" {
		field = property
	}

	id, _, _ := strings.Cut(field, ".")

	if def, ok := m.byID[id]; ok {
		return fmt.Sprintf("%s (%s): %s", def.Name, def.ID, resultErr.Description())
	}

	return fmt.Sprintf("%s: %s", field, resultErr.Description())
}
