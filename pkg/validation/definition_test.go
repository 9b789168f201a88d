package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formrules/pkg/schema"
)

const smokerDefinition = `{
  "sections": [
    {
      "id": "sec_health",
      "title": "Health",
      "fields": [
        {"id": "field_smoker", "type": "singleSelect", "label": "Do you smoke?", "options": ["Yes", "No"],
         "validation": [{"rule": "required", "message": "Please answer"}]},
        {"id": "field_cigs", "type": "number", "label": "Cigarettes per day",
         "branching": {"showIf": "field_smoker == 'Yes'"},
         "validation": [
           {"rule": "requiredIf", "condition": "field_smoker == 'Yes'", "message": "Tell us how many"},
           {"rule": "min", "value": 0, "message": "Cannot be negative"},
           {"rule": "max", "value": "200", "message": "Too many"}
         ]},
        {"id": "field_quit", "type": "date", "label": "Quit date",
         "branching": {"showIf": "field_smoker == 'No'"},
         "validation": [{"rule": "max", "value": "today()", "message": "Cannot be in the future"}]}
      ],
      "groups": [
        {"id": "grp_contact", "title": "Contact", "fields": [
          {"id": "field_email", "type": "text", "label": "Email",
           "validation": [{"rule": "regex", "value": "^[^@]+@[^@]+$", "message": "Enter an email"}]}
        ]}
      ]
    }
  ]
}`

var ignoreMessage = cmpopts.IgnoreFields(schema.ValidationError{}, "Message")

func TestValidateFormDefinitionAcceptsValidDefinition(t *testing.T) {
	t.Parallel()

	if errs := ValidateFormDefinition([]byte(smokerDefinition)); len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
	if errs := ValidateFormDefinition(smokerDefinition); len(errs) != 0 {
		t.Fatalf("expected string input to validate, got %+v", errs)
	}
}

func TestValidateFormDefinitionAcceptsTypedDefinition(t *testing.T) {
	t.Parallel()

	def, err := schema.DecodeDefinition([]byte(smokerDefinition))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errs := ValidateFormDefinition(def); len(errs) != 0 {
		t.Fatalf("expected typed definition to validate, got %+v", errs)
	}
}

func TestValidateFormDefinitionGroupsOnlySection(t *testing.T) {
	t.Parallel()

	def := schema.FormDefinition{Sections: []schema.Section{{
		ID:    "sec_contact",
		Title: "Contact",
		Groups: []schema.Group{{
			ID:     "grp_email",
			Fields: []schema.Field{{ID: "field_email", Type: schema.FieldTypeText, Label: "Email"}},
		}},
	}}}

	if errs := ValidateFormDefinition(def); len(errs) != 0 {
		t.Fatalf("expected a section with only groups to validate, got %+v", errs)
	}
	if errs := ValidateFormDefinition(&def); len(errs) != 0 {
		t.Fatalf("expected pointer input to validate, got %+v", errs)
	}

	// An empty group is still rejected by its minimum size.
	def.Sections[0].Groups[0].Fields = nil
	got := ValidateFormDefinition(def)
	want := []schema.ValidationError{{Path: "sections.0.groups.0.fields", Code: schema.CodeTooSmall}}
	if diff := cmp.Diff(want, got, ignoreMessage); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateDefinitionChecksConditionOnEveryRule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rule schema.ValidationRule
	}{
		{"required", schema.ValidationRule{Rule: schema.RuleRequired, Condition: "ghost == 1", Message: "m"}},
		{"min", schema.ValidationRule{Rule: schema.RuleMin, Value: "1", Condition: "ghost == 1", Message: "m"}},
		{"requiredIf", schema.ValidationRule{Rule: schema.RuleRequiredIf, Condition: "ghost == 1", Message: "m"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			def := schema.FormDefinition{Sections: []schema.Section{{
				ID:    "s",
				Title: "S",
				Fields: []schema.Field{{
					ID:         "a",
					Type:       schema.FieldTypeNumber,
					Label:      "A",
					Validation: []schema.ValidationRule{tc.rule},
				}},
			}}}

			got := ValidateFormDefinition(def)
			want := []schema.ValidationError{{
				Path:    schema.RulePath("a", 0),
				Code:    schema.CodeInvalidFieldReference,
				Message: `condition references unknown field "ghost"`,
			}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateFormDefinitionShape(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want schema.Code
	}{
		{name: "missing sections", raw: `{}`, want: schema.CodeInvalidType},
		{name: "empty sections", raw: `{"sections": []}`, want: schema.CodeTooSmall},
		{name: "sections wrong type", raw: `{"sections": "none"}`, want: schema.CodeInvalidType},
		{
			name: "unknown field type",
			raw:  `{"sections": [{"id": "s", "title": "S", "fields": [{"id": "f", "type": "slider", "label": "F"}]}]}`,
			want: schema.CodeInvalidEnumValue,
		},
		{
			name: "unknown rule",
			raw:  `{"sections": [{"id": "s", "title": "S", "fields": [{"id": "f", "type": "text", "label": "F", "validation": [{"rule": "length", "message": "m"}]}]}]}`,
			want: schema.CodeUnknownRule,
		},
		{
			name: "unexpected key",
			raw:  `{"sections": [{"id": "s", "title": "S", "fields": [{"id": "f", "type": "text", "label": "F", "colour": "red"}]}]}`,
			want: schema.CodeUnrecognizedKeys,
		},
		{
			name: "empty group",
			raw:  `{"sections": [{"id": "s", "title": "S", "fields": [], "groups": [{"id": "g", "fields": []}]}]}`,
			want: schema.CodeTooSmall,
		},
		{name: "not json", raw: `{"sections": [`, want: schema.CodeInvalidShape},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			errs := ValidateFormDefinition([]byte(tc.raw))
			if !schema.HasCode(errs, tc.want) {
				t.Fatalf("expected code %q, got %+v", tc.want, errs)
			}
		})
	}
}

func TestValidateFormDefinitionShapeFailureIsFatal(t *testing.T) {
	t.Parallel()

	// Duplicate ids would be reported if the pipeline went on past the shape
	// step.
	raw := `{"sections": [{"id": "s", "title": "S", "fields": [
	  {"id": "f", "type": "text", "label": "F"},
	  {"id": "f", "type": "bogus", "label": "F"}
	]}]}`
	errs := ValidateFormDefinition([]byte(raw))
	if diff := cmp.Diff([]schema.Code{schema.CodeInvalidEnumValue}, schema.Codes(errs)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateFormDefinitionAccumulatesErrors(t *testing.T) {
	t.Parallel()

	raw := `{
  "sections": [
    {
      "id": "s1",
      "title": "First",
      "fields": [
        {"id": "f_smoker", "type": "singleSelect", "label": "Smoker", "options": ["Yes", "No"]},
        {"id": "f_cigs", "type": "number", "label": "Cigs",
         "branching": {"showIf": "f_smoker == 'Yes'"},
         "validation": [
           {"rule": "requiredIf", "message": "needed"},
           {"rule": "min", "value": "lots", "message": "bad bound"},
           {"rule": "regex", "value": "^x", "message": "pattern"}
         ]},
        {"id": "f_color", "type": "singleSelect", "label": "Colour"},
        {"id": "f_note", "type": "text", "label": "Note",
         "branching": {"showIf": "f_ghost == 1"},
         "validation": [
           {"rule": "regex", "value": "(", "message": "broken"},
           {"rule": "cross_field", "condition": "f_note", "message": "no operator"}
         ]},
        {"id": "f_a", "type": "text", "label": "A", "branching": {"showIf": "f_b == 'x'"}},
        {"id": "f_b", "type": "text", "label": "B", "branching": {"showIf": "f_a == 'y'"}}
      ],
      "groups": [
        {"id": "s1", "fields": [{"id": "f_smoker", "type": "text", "label": "Again"}]}
      ]
    },
    {"id": "s2", "title": "Second", "fields": [{"id": "f_smoker", "type": "text", "label": "Third time"}]}
  ]
}`

	got := ValidateFormDefinition([]byte(raw))
	want := []schema.ValidationError{
		{Path: "group.s1", Code: schema.CodeDuplicateFieldID},
		{Path: "field.f_smoker", Code: schema.CodeDuplicateFieldID},
		{Path: "field.f_color", Code: schema.CodeMissingOptions},
		{Path: "field.f_cigs.validation.0", Code: schema.CodeMissingCondition},
		{Path: "field.f_cigs.validation.1", Code: schema.CodeInvalidRuleValue},
		{Path: "field.f_cigs.validation.2", Code: schema.CodeIncompatibleRule},
		{Path: "field.f_note.branching", Code: schema.CodeInvalidFieldReference},
		{Path: "field.f_note.validation.0", Code: schema.CodeInvalidRuleValue},
		{Path: "field.f_note.validation.1", Code: schema.CodeInvalidExpression},
		{Path: "form.branching", Code: schema.CodeCircularDependency},
	}
	if diff := cmp.Diff(want, got, ignoreMessage); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	last := got[len(got)-1]
	if last.Message != "circular dependency: f_a -> f_b -> f_a" {
		t.Fatalf("unexpected cycle message %q", last.Message)
	}
}

func TestValidateDefinitionSelfReferenceIsCycle(t *testing.T) {
	t.Parallel()

	def := schema.FormDefinition{Sections: []schema.Section{{
		ID:    "s",
		Title: "S",
		Fields: []schema.Field{{
			ID:        "field_loop",
			Type:      schema.FieldTypeText,
			Label:     "Loop",
			Branching: &schema.Branching{ShowIf: "field_loop == 'x'"},
		}},
	}}}

	got := NewDefinitionValidator().ValidateDefinition(def)
	want := []schema.ValidationError{{
		Path:    schema.PathFormBranching,
		Code:    schema.CodeCircularDependency,
		Message: "circular dependency: field_loop -> field_loop",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateDefinitionDepthGuard(t *testing.T) {
	t.Parallel()

	chain := []schema.Field{
		{ID: "f1", Type: schema.FieldTypeText, Label: "1", Branching: &schema.Branching{ShowIf: "f2 == 'x'"}},
		{ID: "f2", Type: schema.FieldTypeText, Label: "2", Branching: &schema.Branching{ShowIf: "f3 == 'x'"}},
		{ID: "f3", Type: schema.FieldTypeText, Label: "3", Branching: &schema.Branching{ShowIf: "f4 == 'x'"}},
		{ID: "f4", Type: schema.FieldTypeText, Label: "4"},
	}
	def := schema.FormDefinition{Sections: []schema.Section{{ID: "s", Title: "S", Fields: chain}}}

	got := NewDefinitionValidator(WithMaxDepth(2)).ValidateDefinition(def)
	if diff := cmp.Diff([]schema.Code{schema.CodeDependencyDepth}, schema.Codes(got)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if got := NewDefinitionValidator().ValidateDefinition(def); len(got) != 0 {
		t.Fatalf("expected default depth to accept the chain, got %+v", got)
	}
}

func TestDefinitionSchemaLoadsOnce(t *testing.T) {
	t.Parallel()

	first, err := DefinitionSchema()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	second, err := DefinitionSchema()
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached schema instance")
	}
}
