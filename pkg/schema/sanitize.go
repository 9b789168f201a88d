package schema

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// Sanitize returns a copy of def with markup stripped from author-supplied
// text: section and group titles, field labels, help text, and rule messages.
// Identifiers, options and expressions are left untouched.
func Sanitize(def FormDefinition) FormDefinition {
	out := FormDefinition{Sections: make([]Section, len(def.Sections))}
	for i, section := range def.Sections {
		section.Title = sanitizeText(section.Title)
		section.Fields = sanitizeFields(section.Fields)
		if section.Groups != nil {
			groups := make([]Group, len(section.Groups))
			for j, group := range section.Groups {
				group.Title = sanitizeText(group.Title)
				group.Fields = sanitizeFields(group.Fields)
				groups[j] = group
			}
			section.Groups = groups
		}
		out.Sections[i] = section
	}
	return out
}

func sanitizeFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, field := range fields {
		field.Label = sanitizeText(field.Label)
		field.HelpText = sanitizeText(field.HelpText)
		if field.Options != nil {
			field.Options = append([]string(nil), field.Options...)
		}
		if field.Branching != nil {
			branching := *field.Branching
			field.Branching = &branching
		}
		if field.Validation != nil {
			rules := make([]ValidationRule, len(field.Validation))
			for j, rule := range field.Validation {
				rule.Message = sanitizeText(rule.Message)
				rules[j] = rule
			}
			field.Validation = rules
		}
		out[i] = field
	}
	return out
}

func sanitizeText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	cleaned := textSanitizer().Sanitize(raw)
	// bluemonday escapes entities; author text is plain, so undo that.
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
