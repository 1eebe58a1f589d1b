package content

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FormatMetaValue converts a decoded JSON value into its stored string form.
// Integral numbers lose their fraction, booleans become "1" or "0".
func FormatMetaValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return "0"
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return FormatMetaValue(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// Truthy interprets a stored flag value
func Truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Coerce converts a stored string to its declared type. Empty or unparsable
// numeric values come back as the empty string.
func Coerce(t FieldType, raw string) any {
	switch t {
	case TypeBoolean:
		return Truthy(raw)
	case TypeInteger:
		s := strings.TrimSpace(raw)
		if s == "" {
			return ""
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return ""
	case TypeNumber:
		s := strings.TrimSpace(raw)
		if s == "" {
			return ""
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return ""
	default:
		return raw
	}
}

// ValidateMeta checks a stored value against the declared type and range
func ValidateMeta(f MetaField, raw string) error {
	if raw == "" {
		return nil
	}
	switch f.Type {
	case TypeInteger, TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("%s must be numeric", f.Key)
		}
		if f.Type == TypeInteger && n != math.Trunc(n) {
			return fmt.Errorf("%s must be an integer", f.Key)
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Errorf("%s must be at least %v", f.Key, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Errorf("%s must be at most %v", f.Key, *f.Max)
		}
	}
	return nil
}

// FlattenQuestionnaire maps sectioned answers onto flat metadata keys. Unknown
// sections and fields are dropped.
func FlattenQuestionnaire(answers map[string]map[string]any) map[string]string {
	flat := make(map[string]string)
	for section, values := range answers {
		for name, v := range values {
			if field, ok := LookupQuestion(section, name); ok {
				flat[field.Name] = FormatMetaValue(v)
			}
		}
	}
	return flat
}

// UnflattenQuestionnaire rebuilds the sectioned questionnaire from flat
// metadata, coercing each value to its declared type.
func UnflattenQuestionnaire(meta map[string]string) map[string]any {
	out := make(map[string]any, len(QuestionnaireSchema))
	for _, section := range QuestionnaireSchema {
		fields := make(map[string]any, len(section.Fields))
		for _, field := range section.Fields {
			raw := meta[field.Name]
			fields[field.Name] = Coerce(field.Type, raw)
		}
		out[section.Key] = fields
	}
	return out
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a term name
func Slugify(name string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}
