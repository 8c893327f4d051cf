// internal/resolver/locator.go
package resolver

import (
	"regexp"
	"strings"
)

// Locator is a compound field identifier split into the candidates each
// strategy consumes.
type Locator struct {
	Raw          string
	Structural   []string
	Labels       []string
	Placeholders []string
}

// StructuralGroup joins the structural candidates into one selector group.
func (l Locator) StructuralGroup() string {
	return strings.Join(l.Structural, ", ")
}

// Empty reports whether no strategy has anything to try.
func (l Locator) Empty() bool {
	return len(l.Structural) == 0 && len(l.Labels) == 0 && len(l.Placeholders) == 0
}

var placeholderHint = regexp.MustCompile(`\[\s*placeholder\s*[*^$~|]?=\s*["']?([^"'\]]+?)["']?\s*\]`)

// Bare tag names accepted as structural candidates.
var knownTags = map[string]bool{
	"input": true, "select": true, "textarea": true, "button": true, "form": true,
	"option": true, "label": true, "fieldset": true, "div": true, "span": true,
	"a": true, "li": true, "p": true, "section": true,
}

// ParseLocator classifies every comma-separated part of raw. Commas inside
// brackets, parentheses or quotes do not split.
func ParseLocator(raw string) Locator {
	loc := Locator{Raw: raw}
	for _, part := range splitTopLevel(raw) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lower, "label:"):
			loc.Labels = appendUnique(loc.Labels, strings.TrimSpace(part[len("label:"):]))
		case strings.HasPrefix(lower, "placeholder:"):
			loc.Placeholders = appendUnique(loc.Placeholders, strings.TrimSpace(part[len("placeholder:"):]))
		case isStructural(part):
			loc.Structural = append(loc.Structural, part)
			for _, m := range placeholderHint.FindAllStringSubmatch(part, -1) {
				loc.Placeholders = appendUnique(loc.Placeholders, strings.TrimSpace(m[1]))
			}
		default:
			loc.Labels = appendUnique(loc.Labels, part)
			loc.Placeholders = appendUnique(loc.Placeholders, part)
		}
	}
	return loc
}

func isStructural(part string) bool {
	switch part[0] {
	case '#', '.', '[', '*':
		return true
	}
	if strings.ContainsAny(part, "[=>") {
		return true
	}
	// A leading tag name directly followed by nothing or a simple selector
	// suffix, e.g. "input", "select.state", "button:first-child".
	end := strings.IndexAny(part, ".#:[ ")
	if end == -1 {
		return knownTags[strings.ToLower(part)]
	}
	return part[end] != ' ' && knownTags[strings.ToLower(part[:end])]
}

func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}
