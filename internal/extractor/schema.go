package extractor

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

// Kind is the JSON shape a field must have.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	KindEnum
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindEnum:
		return "enum"
	case KindStringList:
		return "list of strings"
	default:
		return "string"
	}
}

// Field describes one property of the target object.
type Field struct {
	Name        string
	Description string
	Kind        Kind
	Required    bool
	Enum        []string
	Min         *float64
	Max         *float64
	MaxLen      int
	Pattern     *regexp.Regexp
}

// Schema fully describes the object an extractor produces.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

// Lookup returns the named field.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Code classifies a violation.
type Code string

const (
	CodeMalformed Code = "malformed"
	CodeType      Code = "type"
	CodeEnum      Code = "enum"
	CodeRange     Code = "range"
	CodeLength    Code = "length"
	CodePattern   Code = "pattern"
	CodeRequired  Code = "required"
)

// Violation is a field-level validation failure. The offending value is
// dropped from the object, never coerced.
type Violation struct {
	Field  string `json:"field"`
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
	Value  any    `json:"value,omitempty"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return fmt.Sprintf("%s: %s", v.Code, v.Reason)
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Reason)
}

// validateFields checks every schema field present in obj and returns the
// accepted values. Required-ness is not checked here: a partial object is
// valid as long as the fields it does carry are.
func (s Schema) validateFields(obj map[string]any) (map[string]any, []Violation) {
	clean := make(map[string]any, len(obj))
	var violations []Violation

	for _, f := range s.Fields {
		raw, ok := obj[f.Name]
		if !ok || raw == nil {
			continue
		}
		v, violation := f.check(raw)
		if violation != nil {
			violations = append(violations, *violation)
			continue
		}
		if v != nil {
			clean[f.Name] = v
		}
	}
	return clean, violations
}

// missingRequired lists required fields present in neither object.
func (s Schema) missingRequired(candidate, existing map[string]any) []Violation {
	var out []Violation
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if _, ok := candidate[f.Name]; ok {
			continue
		}
		if _, ok := existing[f.Name]; ok {
			continue
		}
		out = append(out, Violation{Field: f.Name, Code: CodeRequired, Reason: "field is required"})
	}
	return out
}

// check validates a single raw JSON value. A nil value with no violation
// means the field is effectively absent (e.g. a blank string).
func (f Field) check(raw any) (any, *Violation) {
	fail := func(code Code, format string, args ...any) (any, *Violation) {
		return nil, &Violation{Field: f.Name, Code: code, Reason: fmt.Sprintf(format, args...), Value: raw}
	}

	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return fail(CodeType, "expected a string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return fail(CodeLength, "longer than %d characters", f.MaxLen)
		}
		if f.Pattern != nil && !f.Pattern.MatchString(s) {
			return fail(CodePattern, "does not match %s", f.Pattern.String())
		}
		return s, nil

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return fail(CodeType, "expected one of %s", strings.Join(f.Enum, ", "))
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if !slices.Contains(f.Enum, s) {
			return fail(CodeEnum, "%q is not one of %s", s, strings.Join(f.Enum, ", "))
		}
		return s, nil

	case KindInteger, KindNumber:
		n, ok := raw.(float64)
		if !ok {
			return fail(CodeType, "expected a %s", f.Kind)
		}
		if f.Kind == KindInteger && n != math.Trunc(n) {
			return fail(CodeType, "expected a whole number")
		}
		if f.Min != nil && n < *f.Min {
			return fail(CodeRange, "must be >= %g", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fail(CodeRange, "must be <= %g", *f.Max)
		}
		return n, nil

	case KindStringList:
		items, ok := raw.([]any)
		if !ok {
			return fail(CodeType, "expected a list of strings")
		}
		var out []any
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return fail(CodeType, "expected a list of strings")
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	}
	return fail(CodeType, "unsupported field kind")
}

// describe renders one field as a prompt line.
func (f Field) describe() string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(f.Name)
	b.WriteString(" (")
	if f.Kind == KindEnum {
		b.WriteString("one of: " + strings.Join(f.Enum, ", "))
	} else {
		b.WriteString(f.Kind.String())
	}
	if f.Min != nil {
		fmt.Fprintf(&b, ", >= %g", *f.Min)
	}
	if f.Max != nil {
		fmt.Fprintf(&b, ", <= %g", *f.Max)
	}
	if f.Pattern != nil {
		fmt.Fprintf(&b, ", format %s", f.Pattern.String())
	}
	if f.Required {
		b.WriteString(", required")
	}
	b.WriteString(")")
	if f.Description != "" {
		b.WriteString(": " + f.Description)
	}
	return b.String()
}

func (s Schema) describe() string {
	lines := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		lines = append(lines, f.describe())
	}
	return strings.Join(lines, "\n")
}

// Float is a helper for Field.Min / Field.Max literals.
func Float(v float64) *float64 {
	return &v
}
