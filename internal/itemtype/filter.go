package itemtype

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind selects how a manifest field filter evaluates its field value.
type Kind string

const (
	// KindOperator applies a binary comparison to (field value, expected value).
	// Raw form: %op:expected_value:expected_result%.
	KindOperator Kind = "operator"
	// KindValueMethod applies a method of the field value itself.
	// Raw form: #method:expected_value:expected_result#.
	KindValueMethod Kind = "value_method"
)

// Closed operator and value method registries. Unknown names are rejected
// when the filter is parsed, not at match time.
var (
	operatorNames    = []string{"contains", "eq", "ge", "gt", "le", "lt", "matches", "ne"}
	valueMethodNames = []string{"contains", "count", "endswith", "find", "startswith"}
)

// Filter is one compiled manifest field filter.
type Filter struct {
	Field    string
	Raw      string
	Kind     Kind
	Name     string
	Expected string
	// Result is only consulted when the evaluation yields a non-boolean
	// value (count, find); boolean evaluations stand on their own.
	Result string

	re *regexp.Regexp
}

// ParseFilter compiles the raw filter string configured for a manifest
// field. Both raw forms carry three colon-separated parts inside their
// delimiters; anything else is a configuration error.
func ParseFilter(field, raw string) (Filter, error) {
	if strings.TrimSpace(field) == "" {
		return Filter{}, fmt.Errorf("manifest field filter %q: field name is required", raw)
	}
	var kind Kind
	switch {
	case len(raw) >= 2 && raw[0] == '%' && raw[len(raw)-1] == '%':
		kind = KindOperator
	case len(raw) >= 2 && raw[0] == '#' && raw[len(raw)-1] == '#':
		kind = KindValueMethod
	default:
		return Filter{}, fmt.Errorf(
			"manifest field filter for %s: %q is not of the form %%op:value:result%% or #method:value:result#",
			field, raw)
	}

	parts := strings.SplitN(raw[1:len(raw)-1], ":", 3)
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf(
			"manifest field filter for %s: %q needs three colon-separated parts", field, raw)
	}

	f := Filter{Field: field, Raw: raw, Kind: kind, Name: parts[0], Expected: parts[1], Result: parts[2]}
	switch kind {
	case KindOperator:
		if !knownName(operatorNames, f.Name) {
			return Filter{}, fmt.Errorf(
				"manifest field filter for %s: unknown operator %q (supported: %s)",
				field, f.Name, strings.Join(operatorNames, ", "))
		}
		if f.Name == "matches" {
			re, err := regexp.Compile(f.Expected)
			if err != nil {
				return Filter{}, fmt.Errorf("manifest field filter for %s: %w", field, err)
			}
			f.re = re
		}
	case KindValueMethod:
		if !knownName(valueMethodNames, f.Name) {
			return Filter{}, fmt.Errorf(
				"manifest field filter for %s: unknown value method %q (supported: %s)",
				field, f.Name, strings.Join(valueMethodNames, ", "))
		}
	}
	return f, nil
}

func knownName(names []string, name string) bool {
	i := sort.SearchStrings(names, name)
	return i < len(names) && names[i] == name
}

// Match evaluates the filter against a manifest field value. An absent or
// empty field value never matches. Boolean evaluations count directly;
// other results match only when the configured expected result coerces to
// the result's own type and compares equal. Coercion failure is a no-match,
// not an error.
func (f Filter) Match(fieldValue any) bool {
	if !truthy(fieldValue) {
		return false
	}
	result := f.evaluate(fieldValue)
	if b, ok := result.(bool); ok {
		return b
	}
	return matchesExpectedResult(result, f.Result)
}

func (f Filter) evaluate(fieldValue any) any {
	if f.Kind == KindValueMethod {
		value := formatFieldValue(fieldValue)
		switch f.Name {
		case "startswith":
			return strings.HasPrefix(value, f.Expected)
		case "endswith":
			return strings.HasSuffix(value, f.Expected)
		case "contains":
			return strings.Contains(value, f.Expected)
		case "count":
			return strings.Count(value, f.Expected)
		case "find":
			return strings.Index(value, f.Expected)
		}
		return false
	}

	switch f.Name {
	case "eq":
		equal, comparable := equalValues(fieldValue, f.Expected)
		return comparable && equal
	case "ne":
		equal, comparable := equalValues(fieldValue, f.Expected)
		return comparable && !equal
	case "lt":
		cmp, ok := orderValues(fieldValue, f.Expected)
		return ok && cmp < 0
	case "le":
		cmp, ok := orderValues(fieldValue, f.Expected)
		return ok && cmp <= 0
	case "gt":
		cmp, ok := orderValues(fieldValue, f.Expected)
		return ok && cmp > 0
	case "ge":
		cmp, ok := orderValues(fieldValue, f.Expected)
		return ok && cmp >= 0
	case "contains":
		return containsValue(fieldValue, f.Expected)
	case "matches":
		return f.re.MatchString(formatFieldValue(fieldValue))
	}
	return false
}

// equalValues coerces expected to the field value's own type before
// comparing. Field values outside the supported scalar types are not
// comparable.
func equalValues(fieldValue any, expected string) (equal, comparable bool) {
	switch value := fieldValue.(type) {
	case string:
		return value == expected, true
	case int:
		n, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		return err == nil && float64(value) == n, err == nil
	case int64:
		n, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		return err == nil && float64(value) == n, err == nil
	case float64:
		n, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		return err == nil && value == n, err == nil
	case bool:
		b, err := strconv.ParseBool(strings.TrimSpace(expected))
		return err == nil && value == b, err == nil
	default:
		return false, false
	}
}

func orderValues(fieldValue any, expected string) (cmp int, ok bool) {
	switch value := fieldValue.(type) {
	case string:
		return strings.Compare(value, expected), true
	case int:
		return compareFloat(float64(value), expected)
	case int64:
		return compareFloat(float64(value), expected)
	case float64:
		return compareFloat(value, expected)
	default:
		return 0, false
	}
}

func compareFloat(value float64, expected string) (int, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return 0, false
	}
	switch {
	case value < n:
		return -1, true
	case value > n:
		return 1, true
	default:
		return 0, true
	}
}

func containsValue(fieldValue any, expected string) bool {
	switch value := fieldValue.(type) {
	case string:
		return strings.Contains(value, expected)
	case []string:
		for _, item := range value {
			if item == expected {
				return true
			}
		}
	case []any:
		for _, item := range value {
			if formatFieldValue(item) == expected {
				return true
			}
		}
	}
	return false
}

func matchesExpectedResult(result any, expected string) bool {
	switch value := result.(type) {
	case int:
		n, err := strconv.Atoi(strings.TrimSpace(expected))
		return err == nil && n == value
	case int64:
		n, err := strconv.ParseInt(strings.TrimSpace(expected), 10, 64)
		return err == nil && n == value
	case float64:
		n, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		return err == nil && n == value
	case string:
		return value == expected
	default:
		return false
	}
}

// truthy mirrors the legacy "skip empty field values" rule: nil, empty
// strings, zero numbers, false, and empty collections never reach the
// filter evaluation.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case string:
		return value != ""
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case []any:
		return len(value) > 0
	case []string:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	default:
		return true
	}
}

func formatFieldValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}
