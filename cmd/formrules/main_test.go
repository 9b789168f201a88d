package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/prompt"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/testsupport"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	code, _, stderr := runCLI(t, "")
	if code != exitError {
		t.Fatalf("expected exit %d without a command, got %d", exitError, code)
	}
	if !strings.Contains(stderr, "validate") || !strings.Contains(stderr, "fill") {
		t.Fatalf("expected usage to list commands, got %q", stderr)
	}

	if code, _, _ := runCLI(t, "", "help"); code != exitOK {
		t.Fatalf("expected help to exit 0, got %d", code)
	}
	if code, _, stderr := runCLI(t, "", "bogus"); code != exitError || !strings.Contains(stderr, `unknown command "bogus"`) {
		t.Fatalf("unexpected result for unknown command: %d %q", code, stderr)
	}
	if code, _, _ := runCLI(t, "", "validate", "-h"); code != exitOK {
		t.Fatalf("expected command help to exit 0, got %d", code)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	health := testsupport.FixturePath("forms", "health.json")
	cyclic := testsupport.FixturePath("forms", "cyclic.json")
	intake := testsupport.FixturePath("forms", "intake.yaml")

	code, stdout, stderr := runCLI(t, "", "validate", health, intake)
	if code != exitOK {
		t.Fatalf("expected valid definitions, got %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "ok    "+health) || !strings.Contains(stdout, "ok    "+intake) {
		t.Fatalf("expected ok lines in input order, got %q", stdout)
	}

	code, stdout, _ = runCLI(t, "", "validate", health, cyclic)
	if code != exitInvalid {
		t.Fatalf("expected exit %d for a cyclic definition, got %d", exitInvalid, code)
	}
	if !strings.Contains(stdout, "FAIL  "+cyclic) || !strings.Contains(stdout, string(schema.CodeCircularDependency)) {
		t.Fatalf("expected circular dependency report, got %q", stdout)
	}
}

func TestValidateCommandJSON(t *testing.T) {
	t.Parallel()

	cyclic := testsupport.FixturePath("forms", "cyclic.json")
	code, stdout, _ := runCLI(t, "", "validate", "-format", "json", "-sanitize", cyclic)
	if code != exitInvalid {
		t.Fatalf("expected exit %d, got %d", exitInvalid, code)
	}

	var results []fileResult
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if len(results) != 1 || results[0].Valid {
		t.Fatalf("expected one invalid result, got %+v", results)
	}
	if !schema.HasCode(results[0].Errors, schema.CodeCircularDependency) {
		t.Fatalf("expected circular_dependency, got %+v", results[0].Errors)
	}
}

func TestValidateCommandMissingFile(t *testing.T) {
	t.Parallel()

	code, _, stderr := runCLI(t, "", "validate", filepath.Join(t.TempDir(), "missing.json"))
	if code != exitError {
		t.Fatalf("expected exit %d, got %d", exitError, code)
	}
	if !strings.Contains(stderr, "validate: ") {
		t.Fatalf("expected command prefixed error, got %q", stderr)
	}
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	health := testsupport.FixturePath("forms", "health.json")

	code, stdout, stderr := runCLI(t, "", "check", "-today", "2026-03-15",
		"-answers", testsupport.FixturePath("answers", "health_valid.json"), health)
	if code != exitOK {
		t.Fatalf("expected valid submission, got %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "submission is valid") || !strings.HasPrefix(stdout, "visible: field_name") {
		t.Fatalf("unexpected output %q", stdout)
	}

	code, stdout, _ = runCLI(t, "", "check", "-today", "2026-03-15", "-format", "json",
		"-answers", testsupport.FixturePath("answers", "health_invalid.json"), health)
	if code != exitInvalid {
		t.Fatalf("expected exit %d, got %d", exitInvalid, code)
	}

	var out checkOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	want := testsupport.MustLoadErrors(t, testsupport.FixturePath("golden", "health_invalid_errors.json"))
	if diff := testsupport.CompareGolden(want, out.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if len(out.Grouped.Fields["field_age"]) == 0 {
		t.Fatalf("expected grouped errors for field_age, got %+v", out.Grouped)
	}
}

func TestCheckCommandAnswersFromStdin(t *testing.T) {
	t.Parallel()

	intake := testsupport.FixturePath("forms", "intake.yaml")
	stdin := "field_reason: Headache\nfield_urgent: \"Yes\"\n"

	code, stdout, _ := runCLI(t, stdin, "check", "-answers", "-", intake)
	if code != exitInvalid {
		t.Fatalf("expected exit %d, got %d: %s", exitInvalid, code, stdout)
	}
	if !strings.Contains(stdout, "field.field_urgent_details") || !strings.Contains(stdout, "requiredIf") {
		t.Fatalf("expected requiredIf error for urgent details, got %q", stdout)
	}
}

func TestCheckCommandUsage(t *testing.T) {
	t.Parallel()

	code, _, stderr := runCLI(t, "", "check", testsupport.FixturePath("forms", "health.json"))
	if code != exitError || !strings.Contains(stderr, "-answers") {
		t.Fatalf("expected usage error, got %d %q", code, stderr)
	}
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runCLI(t, "", "graph", testsupport.FixturePath("forms", "intake.yaml"))
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	for _, line := range []string{
		"  field_urgent_details -> field_urgent\n",
		"order: field_reason, field_urgent, field_urgent_details\n",
	} {
		if !strings.Contains(stdout, line) {
			t.Fatalf("expected %q in output:\n%s", line, stdout)
		}
	}

	code, stdout, _ = runCLI(t, "", "graph", "-format", "json", testsupport.FixturePath("forms", "cyclic.json"))
	if code != exitInvalid {
		t.Fatalf("expected exit %d for a cycle, got %d", exitInvalid, code)
	}
	var out graphOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if len(out.Cycles) != 1 {
		t.Fatalf("expected one cycle, got %+v", out.Cycles)
	}
	cycle := out.Cycles[0]
	if len(cycle) != 4 || cycle[0] != cycle[len(cycle)-1] {
		t.Fatalf("expected closed three-node cycle, got %v", cycle)
	}
}

type scriptedDriver struct {
	inputs    []string
	selects   []int
	textAreas []string
}

func (d *scriptedDriver) Input(context.Context, prompt.InputConfig) (string, error) {
	if len(d.inputs) == 0 {
		return "", errors.New("no input scripted")
	}
	value := d.inputs[0]
	d.inputs = d.inputs[1:]
	return value, nil
}

func (d *scriptedDriver) Select(context.Context, prompt.SelectConfig) (int, error) {
	if len(d.selects) == 0 {
		return -1, errors.New("no select scripted")
	}
	value := d.selects[0]
	d.selects = d.selects[1:]
	return value, nil
}

func (d *scriptedDriver) MultiSelect(context.Context, prompt.SelectConfig) ([]int, error) {
	return nil, errors.New("no multiselect scripted")
}

func (d *scriptedDriver) TextArea(context.Context, prompt.TextAreaConfig) (string, error) {
	if len(d.textAreas) == 0 {
		return "", errors.New("no textarea scripted")
	}
	value := d.textAreas[0]
	d.textAreas = d.textAreas[1:]
	return value, nil
}

func (d *scriptedDriver) Info(context.Context, string) error {
	return nil
}

// TestFillCommand swaps the package driver and must not run in parallel.
func TestFillCommand(t *testing.T) {
	original := newPromptDriver
	t.Cleanup(func() { newPromptDriver = original })

	driver := &scriptedDriver{
		textAreas: []string{"Headache"},
		selects:   []int{1},
	}
	newPromptDriver = func(env) prompt.PromptDriver { return driver }

	out := filepath.Join(t.TempDir(), "answers.json")
	code, _, stderr := runCLI(t, "", "fill", "-out", out, testsupport.FixturePath("forms", "intake.yaml"))
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read answers: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode answers: %v", err)
	}
	want := map[string]any{"field_reason": "Headache", "field_urgent": "No"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}
