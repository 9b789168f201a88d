package report

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/schema"
)

func TestGroup(t *testing.T) {
	t.Parallel()

	errs := []schema.ValidationError{
		{Path: "field.field_cigs", Code: schema.CodeRequiredIf, Message: "Tell us how many"},
		{Path: "field.field_cigs", Code: schema.CodeMin, Message: " Tell us how many "},
		{Path: "field.field_note.branching", Code: schema.CodeInvalidFieldReference, Message: "unknown field"},
		{Path: "field.field_age.validation.1", Code: schema.CodeIncompatibleRule, Message: "bad rule"},
		{Path: "form.branching", Code: schema.CodeCircularDependency, Message: "circular dependency: a -> b -> a"},
		{Path: "sections.0.fields", Code: schema.CodeInvalidType, Message: "not an array"},
		{Path: "form", Code: schema.CodeInvalidShape, Message: ""},
	}

	got := Group(errs)
	want := ErrorMapping{
		Fields: map[string][]string{
			"field_cigs": {"Tell us how many"},
			"field_note": {"unknown field"},
			"field_age":  {"bad rule"},
		},
		Form: []string{"circular dependency: a -> b -> a", "not an array"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupEmpty(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff(ErrorMapping{}, Group(nil)); diff != "" {
		t.Fatalf("expected empty mapping (-want +got):\n%s", diff)
	}
}

func TestFieldID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"field.a":                  "a",
		"field.a.b":                "a.b",
		"field.a.branching":        "a",
		"field.a.validation.0":     "a",
		"field.a.validation.first": "a.validation.first",
	}
	for path, want := range cases {
		got, ok := FieldID(path)
		if !ok || got != want {
			t.Fatalf("FieldID(%q) = %q, %v; want %q", path, got, ok, want)
		}
	}
	for _, path := range []string{"form", "form.branching", "group.g1", "field."} {
		if _, ok := FieldID(path); ok {
			t.Fatalf("expected %q to be form level", path)
		}
	}
}

func TestWriteAndCount(t *testing.T) {
	t.Parallel()

	errs := []schema.ValidationError{
		{Path: "field.a", Code: schema.CodeRequired, Message: "needed"},
		{Path: "form.branching", Code: schema.CodeCircularDependency, Message: "loop"},
		{Path: "field.b", Code: schema.CodeRequired, Message: "needed"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, errs); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "field.a         required                  needed\n" +
		"form.branching  circular_dependency       loop\n" +
		"field.b         required                  needed\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	counts := CountByCode(errs)
	wantCounts := []CodeCount{{Code: schema.CodeCircularDependency, Count: 1}, {Code: schema.CodeRequired, Count: 2}}
	if diff := cmp.Diff(wantCounts, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}
