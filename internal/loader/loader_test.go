package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/schema"
)

const definitionJSON = `{"sections":[{"id":"s","title":"S","fields":[{"id":"f","type":"text","label":"F"}]}]}`

const definitionYAML = `
sections:
  - id: s
    title: S
    fields:
      - id: f
        type: number
        label: F
        validation:
          - rule: min
            value: 0
            message: too small
`

func TestLoaderReadsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	if err := os.WriteFile(path, []byte(definitionJSON), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	doc, err := New(schema.LoaderOptions{}).Load(context.Background(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := doc.Definition()
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if diff := cmp.Diff([]string{"f"}, def.FieldIDs()); diff != "" {
		t.Fatalf("field ids mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderNormalisesYAML(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"forms/intake.yaml": {Data: []byte(definitionYAML)}}
	l := New(schema.NewLoaderOptions(schema.WithFileSystem(files)))

	doc, err := l.Load(context.Background(), schema.SourceFromFS("forms/intake.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := doc.Definition()
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	field, ok := def.Field("f")
	if !ok {
		t.Fatalf("expected field f")
	}
	if field.Type != schema.FieldTypeNumber || len(field.Validation) != 1 {
		t.Fatalf("unexpected field %+v", field)
	}
	if got := field.Validation[0].Value.String(); got != "0" {
		t.Fatalf("expected numeric bound 0, got %q", got)
	}
}

func TestLoaderEnforcesMaxBytes(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"form.json": {Data: []byte(definitionJSON)}}
	l := New(schema.NewLoaderOptions(schema.WithFileSystem(files), schema.WithMaxBytes(8)))

	_, err := l.Load(context.Background(), schema.SourceFromFS("form.json"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestLoaderHTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/intake.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(definitionJSON))
	}))
	defer server.Close()

	disabled := New(schema.LoaderOptions{})
	if _, err := disabled.Load(context.Background(), schema.SourceFromURL(server.URL+"/forms/intake.json")); err == nil {
		t.Fatalf("expected http to be disabled by default")
	}

	l := New(schema.NewLoaderOptions(schema.WithHTTPClient(server.Client())))
	doc, err := l.Load(context.Background(), schema.SourceFromURL(server.URL+"/forms/intake.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Location() != server.URL+"/forms/intake.json" {
		t.Fatalf("unexpected location %q", doc.Location())
	}

	if _, err := l.Load(context.Background(), schema.SourceFromURL(server.URL+"/missing.json")); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestLoaderHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := fstest.MapFS{"form.json": {Data: []byte(definitionJSON)}}
	_, err := New(schema.NewLoaderOptions(schema.WithFileSystem(files))).Load(ctx, schema.SourceFromFS("form.json"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestYAMLToJSONRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := YAMLToJSON([]byte("sections: [unclosed")); err == nil {
		t.Fatalf("expected yaml error")
	}
}
