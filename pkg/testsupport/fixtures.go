package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/schema"
)

// FixturePath resolves a path relative to the repository testdata directory so
// tests in any package share the same fixtures.
func FixturePath(elem ...string) string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return filepath.Join(append([]string{"testdata"}, elem...)...)
	}
	root := filepath.Join(filepath.Dir(file), "..", "..", "testdata")
	return filepath.Join(append([]string{root}, elem...)...)
}

// LoadDocument reads a fixture into a schema.Document using a file source.
func LoadDocument(t *testing.T, path string) schema.Document {
	t.Helper()

	doc, err := LoadDocumentFromPath(path)
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	return doc
}

// LoadDocumentFromPath returns a Document without requiring testing.T so
// fixtures can be wired in setup functions.
func LoadDocumentFromPath(path string) (schema.Document, error) {
	if path == "" {
		return schema.Document{}, errors.New("testsupport: document path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Document{}, fmt.Errorf("testsupport: read document: %w", err)
	}
	doc, err := schema.NewDocument(schema.SourceFromFile(path), data)
	if err != nil {
		return schema.Document{}, fmt.Errorf("testsupport: new document: %w", err)
	}
	return doc, nil
}

// MustLoadDefinition decodes a JSON definition fixture. It does not run the
// definition validator.
func MustLoadDefinition(t *testing.T, path string) schema.FormDefinition {
	t.Helper()

	def, err := LoadDocument(t, path).Definition()
	if err != nil {
		t.Fatalf("decode definition: %v", err)
	}
	return def
}

// MustLoadAnswers decodes a JSON answer fixture.
func MustLoadAnswers(t *testing.T, path string) schema.AnswerMap {
	t.Helper()

	answers, err := LoadDocument(t, path).Answers()
	if err != nil {
		t.Fatalf("decode answers: %v", err)
	}
	return answers
}

// MustLoadErrors decodes a golden list of validation errors.
func MustLoadErrors(t *testing.T, path string) []schema.ValidationError {
	t.Helper()

	data := MustReadGolden(t, path)
	var out []schema.ValidationError
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal golden: %v", err)
	}
	return out
}

// WriteGolden writes value as indented JSON when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any, opts ...cmp.Option) string {
	return cmp.Diff(want, got, opts...)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
