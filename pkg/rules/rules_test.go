package rules

import (
	"errors"
	"testing"

	"github.com/goliatone/go-formrules/pkg/schema"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		fieldType schema.FieldType
		rule      schema.ValidationRule
		wantKind  schema.RuleKind
		wantErr   error
	}{
		{name: "required", fieldType: schema.FieldTypeText, rule: schema.ValidationRule{Rule: schema.RuleRequired}, wantKind: schema.RuleRequired},
		{name: "requiredIf without condition", fieldType: schema.FieldTypeText, rule: schema.ValidationRule{Rule: schema.RuleRequiredIf}, wantErr: ErrMissingCondition},
		{name: "cross_field without condition", fieldType: schema.FieldTypeText, rule: schema.ValidationRule{Rule: schema.RuleCrossField, Condition: "  "}, wantErr: ErrMissingCondition},
		{name: "min without value", fieldType: schema.FieldTypeNumber, rule: schema.ValidationRule{Rule: schema.RuleMin}, wantErr: ErrMissingValue},
		{name: "max not numeric", fieldType: schema.FieldTypeNumber, rule: schema.ValidationRule{Rule: schema.RuleMax, Value: "lots"}, wantErr: ErrInvalidValue},
		{name: "date min today", fieldType: schema.FieldTypeDate, rule: schema.ValidationRule{Rule: schema.RuleMin, Value: "today()"}, wantKind: schema.RuleMin},
		{name: "date max not a date", fieldType: schema.FieldTypeDate, rule: schema.ValidationRule{Rule: schema.RuleMax, Value: "soon"}, wantErr: ErrInvalidValue},
		{name: "regex malformed", fieldType: schema.FieldTypeText, rule: schema.ValidationRule{Rule: schema.RuleRegex, Value: "("}, wantErr: ErrInvalidValue},
		{name: "unknown", fieldType: schema.FieldTypeText, rule: schema.ValidationRule{Rule: "length"}, wantErr: ErrUnknownRule},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rule, err := Compile(tc.fieldType, tc.rule)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if rule.Kind() != tc.wantKind {
				t.Fatalf("expected kind %q, got %q", tc.wantKind, rule.Kind())
			}
		})
	}
}

func TestCompileMinBound(t *testing.T) {
	t.Parallel()

	rule, err := Compile(schema.FieldTypeNumber, schema.ValidationRule{Rule: schema.RuleMin, Value: "2.5", Message: "at least 2.5"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	bound, ok := rule.(Min)
	if !ok {
		t.Fatalf("expected Min, got %T", rule)
	}
	if bound.Bound.Kind != BoundNumber || bound.Bound.Number != 2.5 {
		t.Fatalf("unexpected bound %+v", bound.Bound)
	}
	if bound.Message() != "at least 2.5" {
		t.Fatalf("unexpected message %q", bound.Message())
	}
}

func TestCompatible(t *testing.T) {
	t.Parallel()

	if !Compatible(schema.FieldTypeNumber, schema.RuleMin) || !Compatible(schema.FieldTypeDate, schema.RuleMax) {
		t.Fatalf("expected min/max on number and date fields to be compatible")
	}
	if Compatible(schema.FieldTypeText, schema.RuleMin) {
		t.Fatalf("expected min on text to be incompatible")
	}
	if !Compatible(schema.FieldTypeTextarea, schema.RuleRegex) {
		t.Fatalf("expected regex on textarea to be compatible")
	}
	if Compatible(schema.FieldTypeNumber, schema.RuleRegex) {
		t.Fatalf("expected regex on number to be incompatible")
	}
	if !Compatible(schema.FieldTypeSignature, schema.RuleRequired) {
		t.Fatalf("expected required to fit every field type")
	}
	if !IsArgumentError(ErrMissingValue) || IsArgumentError(ErrUnknownRule) {
		t.Fatalf("unexpected IsArgumentError classification")
	}
}
