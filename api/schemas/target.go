package schemas

import (
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"
)

// ValueKind selects how a value is assigned to a resolved control.
type ValueKind string

const (
	KindText   ValueKind = "text"
	KindDate   ValueKind = "date"
	KindSelect ValueKind = "select"
)

// ParseValueKind normalizes a kind name from a target file. Template files use
// "textarea", which fills exactly like text.
func ParseValueKind(s string) (ValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "textarea", "input":
		return KindText, nil
	case "date":
		return KindDate, nil
	case "select", "dropdown":
		return KindSelect, nil
	default:
		return "", fmt.Errorf("unknown value kind %q", s)
	}
}

// InferValueKind guesses the kind from the logical field name.
func InferValueKind(field string) ValueKind {
	name := strings.ToLower(field)
	switch {
	case strings.Contains(name, "date"):
		return KindDate
	case strings.Contains(name, "state"), strings.Contains(name, "country"), strings.Contains(name, "gender"):
		return KindSelect
	default:
		return KindText
	}
}

// FieldSpec is one entry of a field mapping: a logical field, its compound
// locator string and the kind of value it accepts.
type FieldSpec struct {
	Name    string
	Locator string
	Kind    ValueKind
}

// FieldMapping is an ordered list of field specs. Order is significant: fields
// are filled in the order they appear in the target file.
type FieldMapping []FieldSpec

// Lookup returns the spec for a logical field name.
func (m FieldMapping) Lookup(name string) (FieldSpec, bool) {
	for _, s := range m {
		if s.Name == name {
			return s, true
		}
	}
	return FieldSpec{}, false
}

type fieldSpecObject struct {
	Locator string `json:"locator"`
	Kind    string `json:"kind,omitempty"`
}

// UnmarshalJSON decodes a JSON object keeping key order. Values are either a
// locator string or an object of the form {"locator": "...", "kind": "..."}.
func (m *FieldMapping) UnmarshalJSON(data []byte) error {
	iter := json.ConfigCompatibleWithStandardLibrary.BorrowIterator(data)
	defer json.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

	if iter.WhatIsNext() == json.NilValue {
		*m = nil
		return nil
	}

	var specs FieldMapping
	var specErr error
	iter.ReadObjectCB(func(it *json.Iterator, name string) bool {
		spec := FieldSpec{Name: name}
		switch it.WhatIsNext() {
		case json.StringValue:
			spec.Locator = it.ReadString()
		case json.ObjectValue:
			var obj fieldSpecObject
			it.ReadVal(&obj)
			kind, err := ParseValueKind(obj.Kind)
			if err != nil {
				specErr = fmt.Errorf("field %q: %w", name, err)
				return false
			}
			spec.Locator = obj.Locator
			if obj.Kind != "" {
				spec.Kind = kind
			}
		default:
			specErr = fmt.Errorf("field %q: locator must be a string or an object", name)
			return false
		}
		specs = append(specs, spec)
		return true
	})
	if specErr != nil {
		return specErr
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return fmt.Errorf("invalid field mapping: %w", iter.Error)
	}
	*m = specs
	return nil
}

// MarshalJSON writes the mapping as an ordered JSON object.
func (m FieldMapping) MarshalJSON() ([]byte, error) {
	stream := json.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer json.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, s := range m {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(s.Name)
		if s.Kind == "" {
			stream.WriteString(s.Locator)
		} else {
			stream.WriteVal(fieldSpecObject{Locator: s.Locator, Kind: string(s.Kind)})
		}
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// -- Target Schemas --

// Target is a destination site's automation profile.
type Target struct {
	Name                      string            `json:"name" validate:"required"`
	URL                       string            `json:"url" validate:"omitempty,url"`
	SignupURL                 string            `json:"signup_url" validate:"required,url"`
	LoginURL                  string            `json:"login_url" validate:"required,url"`
	ApplicationURL            string            `json:"application_url" validate:"required,url"`
	EmailDomain               string            `json:"email_domain" validate:"required_if=RequiresEmailVerification true"`
	RequiresEmailVerification bool              `json:"requires_email_verification"`
	SignupFieldMapping        FieldMapping      `json:"signup_field_mapping"`
	FieldMapping              FieldMapping      `json:"field_mapping" validate:"required,min=1"`
	FieldTypes                map[string]string `json:"field_types,omitempty"`

	// Template-only metadata; accepted so hand-edited templates load cleanly.
	Notes     map[string]string `json:"notes,omitempty"`
	MultiPage bool              `json:"multi_page,omitempty"`
	Pages     []json.RawMessage `json:"pages,omitempty"`
}

// isTemplatePlaceholder reports whether a locator is still the comment text
// written by the template generator.
func isTemplatePlaceholder(locator string) bool {
	l := strings.TrimSpace(locator)
	return l == "" || strings.HasPrefix(l, "# ")
}

// Normalize resolves every field's value kind, drops unedited template
// placeholders, fills in the default signup mapping and validates the result.
// It must be called once after decoding.
func (t *Target) Normalize() error {
	var err error
	if t.SignupFieldMapping, err = t.resolveKinds(t.SignupFieldMapping); err != nil {
		return err
	}
	if len(t.SignupFieldMapping) == 0 {
		if t.SignupFieldMapping, err = t.resolveKinds(DefaultSignupMapping()); err != nil {
			return err
		}
	}
	if t.FieldMapping, err = t.resolveKinds(t.FieldMapping); err != nil {
		return err
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}
	return nil
}

func (t *Target) resolveKinds(m FieldMapping) (FieldMapping, error) {
	out := make(FieldMapping, 0, len(m))
	for _, spec := range m {
		if isTemplatePlaceholder(spec.Locator) {
			continue
		}
		if spec.Kind == "" {
			if override, ok := t.FieldTypes[spec.Name]; ok {
				kind, err := ParseValueKind(override)
				if err != nil {
					return nil, fmt.Errorf("target %q field %q: %w", t.Name, spec.Name, err)
				}
				spec.Kind = kind
			} else {
				spec.Kind = InferValueKind(spec.Name)
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

// DecodeTarget reads and normalizes a single target profile.
func DecodeTarget(r io.Reader) (*Target, error) {
	var t Target
	if err := json.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode target: %w", err)
	}
	if err := t.Normalize(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultSignupMapping is used for targets that do not describe their signup
// form.
func DefaultSignupMapping() FieldMapping {
	return FieldMapping{
		{Name: "first_name", Locator: `#firstName, [name="firstName"], input[type="text"][placeholder*="First"]`},
		{Name: "last_name", Locator: `#lastName, [name="lastName"], input[type="text"][placeholder*="Last"]`},
		{Name: "email", Locator: `#email, [name="email"], input[type="email"]`},
		{Name: "password", Locator: `#password, [name="password"], input[type="password"]`},
		{Name: "phone", Locator: `#phone, [name="phone"], input[type="tel"]`},
	}
}

// TargetTemplate returns a blank profile with the full field skeleton, meant to
// be written to disk and edited by hand.
func TargetTemplate(name string) Target {
	placeholder := func(hint string) string { return "# CSS selector" + hint }
	fields := []struct{ name, hint string }{
		{"first_name", ""}, {"middle_name", ""}, {"last_name", ""}, {"email", ""},
		{"phone", ""}, {"date_of_birth", " (format: YYYY-MM-DD)"}, {"gender", " (select/dropdown)"},
		{"nationality", ""}, {"address_line1", ""}, {"address_line2", ""}, {"city", ""},
		{"state", " (select/dropdown)"}, {"postal_code", ""}, {"country", " (select/dropdown)"},
		{"high_school_name", ""}, {"graduation_year", ""}, {"gpa", ""}, {"sat_score", ""},
		{"act_score", ""}, {"intended_major", " (select/dropdown)"}, {"extracurriculars", " (textarea)"},
	}
	mapping := make(FieldMapping, 0, len(fields))
	for _, f := range fields {
		mapping = append(mapping, FieldSpec{Name: f.name, Locator: placeholder(f.hint)})
	}
	signup := FieldMapping{
		{Name: "first_name", Locator: placeholder(" for first name")},
		{Name: "last_name", Locator: placeholder(" for last name")},
		{Name: "email", Locator: placeholder(" for email")},
		{Name: "phone", Locator: placeholder(" for phone (optional)")},
		{Name: "password", Locator: placeholder(" for password")},
	}

	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	base := "https://" + slug + ".edu"
	return Target{
		Name:                      name,
		URL:                       base,
		SignupURL:                 base + "/signup",
		LoginURL:                  base + "/login",
		ApplicationURL:            base + "/apply",
		EmailDomain:               slug + ".edu",
		RequiresEmailVerification: true,
		Notes: map[string]string{
			"signup_process":       "Describe the signup process here",
			"special_requirements": "Any CAPTCHA, multi-step, or special requirements",
			"testing_notes":        "Notes from testing",
		},
		SignupFieldMapping: signup,
		FieldMapping:       mapping,
		FieldTypes: map[string]string{
			"date_of_birth":    "date",
			"gender":           "select",
			"state":            "select",
			"country":          "select",
			"intended_major":   "select",
			"extracurriculars": "textarea",
		},
	}
}
