package expr

import (
	"sort"
	"strings"
)

var reservedWords = map[string]struct{}{
	"true":  {},
	"false": {},
	"and":   {},
	"or":    {},
	"not":   {},
}

// ExtractFieldReferences returns the bare identifiers in expression, sorted
// and without duplicates. Quoted literals and today() are removed first so
// option values such as 'Female' are never mistaken for field ids.
func ExtractFieldReferences(expression string) []string {
	stripped := strings.ReplaceAll(stripQuoted(expression), todayToken, " ")

	seen := make(map[string]struct{})
	i := 0
	for i < len(stripped) {
		c := stripped[i]
		switch {
		case isIdentStart(c):
			start := i
			for i < len(stripped) && isIdentPart(stripped[i]) {
				i++
			}
			ident := strings.TrimRight(stripped[start:i], ".")
			if _, reserved := reservedWords[strings.ToLower(ident)]; reserved {
				continue
			}
			seen[ident] = struct{}{}
		case isDigit(c):
			// numbers, dates and exponents are literals
			for i < len(stripped) && isIdentPart(stripped[i]) {
				i++
			}
		default:
			i++
		}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for ident := range seen {
		out = append(out, ident)
	}
	sort.Strings(out)
	return out
}

// stripQuoted blanks out single- and double-quoted literals. An unterminated
// quote swallows the rest of the input.
func stripQuoted(expression string) string {
	var b strings.Builder
	b.Grow(len(expression))

	var quote byte
	escaped := false
	for i := 0; i < len(expression); i++ {
		c := expression[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
