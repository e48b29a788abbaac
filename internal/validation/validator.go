// Package validation performs schema-driven structural validation of
// document field payloads. Validation reports violations as data; it never
// raises them as errors, so callers can render field-level feedback.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/right-flow/docguard/internal/errors"
)

// FieldType enumerates the supported schema field types.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// FieldSchema constrains a single named field.
type FieldSchema struct {
	Type      FieldType
	Required  bool
	Min       *float64
	Max       *float64
	MaxLength int
	Pattern   string // Compiled lazily; invalid patterns report as violations
	Enum      []string
}

// Schema maps field names to their constraints.
type Schema map[string]FieldSchema

// Result reports the outcome of a schema validation pass.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator validates and normalizes field payloads.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks data against schema and reports every violation. Unknown
// fields are tolerated; missing required fields, type mismatches, and range
// violations are collected rather than failing fast.
func (v *Validator) Validate(data map[string]interface{}, schema Schema) Result {
	var col errors.ValidationErrorCollection

	for name, fs := range schema {
		value, present := data[name]
		if !present || value == nil {
			if fs.Required {
				col.AddField(name, nil, "required", "field is required")
			}
			continue
		}

		v.checkField(&col, name, value, fs)
	}

	return Result{Valid: !col.HasErrors(), Errors: col.Messages()}
}

func (v *Validator) checkField(col *errors.ValidationErrorCollection, name string, value interface{}, fs FieldSchema) {
	switch fs.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			col.AddField(name, value, "type", "expected a string")
			return
		}
		if fs.MaxLength > 0 && len([]rune(s)) > fs.MaxLength {
			col.AddField(name, value, "maxLength",
				fmt.Sprintf("longer than %d characters", fs.MaxLength))
		}
		if fs.Pattern != "" {
			re, err := regexp.Compile(fs.Pattern)
			if err != nil {
				col.AddField(name, value, "pattern", "schema pattern does not compile")
			} else if !re.MatchString(s) {
				col.AddField(name, value, "pattern", "does not match required pattern")
			}
		}
		if len(fs.Enum) > 0 && !contains(fs.Enum, s) {
			col.AddField(name, value, "enum",
				fmt.Sprintf("must be one of %s", strings.Join(fs.Enum, ", ")))
		}

	case TypeNumber:
		n, ok := asFloat(value)
		if !ok {
			col.AddField(name, value, "type", "expected a number")
			return
		}
		if fs.Min != nil && n < *fs.Min {
			col.AddField(name, value, "min", fmt.Sprintf("below minimum %v", *fs.Min))
		}
		if fs.Max != nil && n > *fs.Max {
			col.AddField(name, value, "max", fmt.Sprintf("above maximum %v", *fs.Max))
		}

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			col.AddField(name, value, "type", "expected a boolean")
		}

	case TypeObject:
		if _, ok := value.(map[string]interface{}); !ok {
			col.AddField(name, value, "type", "expected an object")
		}

	case TypeArray:
		if _, ok := value.([]interface{}); !ok {
			col.AddField(name, value, "type", "expected an array")
		}

	default:
		col.AddField(name, value, "type", fmt.Sprintf("unknown schema type %q", fs.Type))
	}
}

// SanitizeMap best-effort normalizes a payload whose shape is already
// trusted: string values are trimmed and stripped of ASCII control
// characters, and nested maps and slices are walked recursively. The input
// is not mutated.
func (v *Validator) SanitizeMap(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, val := range data {
		out[k] = sanitizeValue(val)
	}

	return out
}

func sanitizeValue(value interface{}) interface{} {
	switch val := value.(type) {
	case string:
		return sanitizeString(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = sanitizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = sanitizeValue(inner)
		}
		return out
	default:
		return value
	}
}

func sanitizeString(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		// Tab and newline survive; other C0/C1 controls are dropped.
		if r == '\t' || r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(cleaned)
}

func asFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}

	return false
}
