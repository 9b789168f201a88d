// Package report turns validation errors into shapes presentation layers can
// use directly: messages grouped by field, form-level messages, and a plain
// text listing.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goliatone/go-formrules/pkg/schema"
)

// ErrorMapping splits errors into field-level and form-level messages. Field
// keys are field ids.
type ErrorMapping struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// Group maps each error to the field its path names. Paths that do not name a
// field (form, form.branching, section.x, shape paths) become form-level
// messages. Messages are trimmed and de-duplicated in order.
func Group(errs []schema.ValidationError) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	for _, err := range errs {
		id, ok := FieldID(err.Path)
		if !ok {
			mapping.Form = append(mapping.Form, err.Message)
			continue
		}
		mapping.Fields[id] = append(mapping.Fields[id], err.Message)
	}

	for id, messages := range mapping.Fields {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			delete(mapping.Fields, id)
			continue
		}
		mapping.Fields[id] = normalized
	}
	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

// FieldID extracts the field id from a field, branching or rule path.
func FieldID(path string) (string, bool) {
	trimmed := strings.TrimSpace(path)
	rest, ok := strings.CutPrefix(trimmed, "field.")
	if !ok || rest == "" {
		return "", false
	}
	if id, ok := strings.CutSuffix(rest, ".branching"); ok && id != "" {
		return id, true
	}
	if idx := strings.LastIndex(rest, ".validation."); idx > 0 && isNumeric(rest[idx+len(".validation."):]) {
		return rest[:idx], true
	}
	return rest, true
}

// Write prints one line per error, "path  code  message", in the given
// order.
func Write(w io.Writer, errs []schema.ValidationError) error {
	width := 0
	for _, err := range errs {
		if len(err.Path) > width {
			width = len(err.Path)
		}
	}
	for _, err := range errs {
		if _, werr := fmt.Fprintf(w, "%-*s  %-24s  %s\n", width, err.Path, err.Code, err.Message); werr != nil {
			return werr
		}
	}
	return nil
}

// CountByCode tallies errors per code, sorted by code.
func CountByCode(errs []schema.ValidationError) []CodeCount {
	counts := make(map[schema.Code]int)
	for _, err := range errs {
		counts[err.Code]++
	}
	out := make([]CodeCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, CodeCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// CodeCount is one row of CountByCode.
type CodeCount struct {
	Code  schema.Code `json:"code"`
	Count int         `json:"count"`
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
