package validation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrules/pkg/schema"
)

//go:embed schema/definition.yaml
var definitionSchemaDoc []byte

const definitionSchemaName = "FormDefinition"

var (
	shapeOnce   sync.Once
	shapeSchema *openapi3.Schema
	shapeErr    error
)

// DefinitionSchema returns the OpenAPI schema every raw definition must
// satisfy. It is loaded once and must not be modified.
func DefinitionSchema() (*openapi3.Schema, error) {
	shapeOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(definitionSchemaDoc)
		if err != nil {
			shapeErr = fmt.Errorf("validation: load definition schema: %w", err)
			return
		}
		ref := doc.Components.Schemas[definitionSchemaName]
		if ref == nil || ref.Value == nil {
			shapeErr = fmt.Errorf("validation: definition schema %q not found", definitionSchemaName)
			return
		}
		shapeSchema = ref.Value
	})
	return shapeSchema, shapeErr
}

// ValidateShape checks a decoded JSON value against DefinitionSchema and
// returns one error per violation, ordered by path.
func ValidateShape(value any) []schema.ValidationError {
	definition, err := DefinitionSchema()
	if err != nil {
		return []schema.ValidationError{{Path: schema.PathForm, Code: schema.CodeInvalidShape, Message: err.Error()}}
	}

	err = definition.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	var out []schema.ValidationError
	for _, issue := range flattenSchemaErrors(err) {
		out = append(out, shapeError(issue))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// decodeValue turns the accepted raw inputs into the generic JSON value the
// shape schema is checked against.
func decodeValue(raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, errors.New("validation: definition is nil")
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	case schema.Document:
		return v.Value()
	case schema.FormDefinition:
		encoded, err := json.Marshal(withEmptyFields(v))
		if err != nil {
			return nil, fmt.Errorf("validation: encode definition: %w", err)
		}
		data = encoded
	case *schema.FormDefinition:
		if v == nil {
			return nil, errors.New("validation: definition is nil")
		}
		return decodeValue(*v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("validation: encode definition: %w", err)
		}
		data = encoded
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("validation: decode definition: %w", err)
	}
	return value, nil
}

// withEmptyFields replaces nil field lists with empty ones so a typed
// definition encodes "fields": [] the way an authored document would. Sections
// may hold only groups.
func withEmptyFields(def schema.FormDefinition) schema.FormDefinition {
	sections := make([]schema.Section, len(def.Sections))
	for i, section := range def.Sections {
		if section.Fields == nil {
			section.Fields = []schema.Field{}
		}
		if section.Groups != nil {
			groups := make([]schema.Group, len(section.Groups))
			for j, group := range section.Groups {
				if group.Fields == nil {
					group.Fields = []schema.Field{}
				}
				groups[j] = group
			}
			section.Groups = groups
		}
		sections[i] = section
	}
	return schema.FormDefinition{Sections: sections}
}

func flattenSchemaErrors(err error) []*openapi3.SchemaError {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []*openapi3.SchemaError
		for _, inner := range multi {
			out = append(out, flattenSchemaErrors(inner)...)
		}
		return out
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		return []*openapi3.SchemaError{schemaErr}
	}
	return []*openapi3.SchemaError{{Reason: err.Error()}}
}

func shapeError(issue *openapi3.SchemaError) schema.ValidationError {
	pointer := issue.JSONPointer()
	path := schema.PathForm
	if len(pointer) > 0 {
		path = strings.Join(pointer, ".")
	}

	code := schema.CodeInvalidShape
	switch issue.SchemaField {
	case "type", "required":
		code = schema.CodeInvalidType
	case "enum":
		code = schema.CodeInvalidEnumValue
		if len(pointer) > 0 && pointer[len(pointer)-1] == "rule" {
			code = schema.CodeUnknownRule
		}
	case "minItems", "minLength":
		code = schema.CodeTooSmall
	case "additionalProperties", "properties":
		code = schema.CodeUnrecognizedKeys
	}
	if code == schema.CodeInvalidShape && strings.Contains(issue.Reason, "unsupported") {
		code = schema.CodeUnrecognizedKeys
	}

	message := strings.TrimSpace(issue.Reason)
	if message == "" {
		message = "definition does not match the expected shape"
	}
	return schema.ValidationError{Path: path, Code: code, Message: message}
}
