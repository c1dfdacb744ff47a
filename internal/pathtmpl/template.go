// Package pathtmpl matches delivery paths against named work path templates
// and extracts the production fields encoded in them.
//
// A pattern is literal text with {key} placeholders, for example
// "{shot}/{step}/{shot}_{step}_v{version}.{ext}". Templates whose pattern
// contains no path separator are string templates; they match bare file
// names rather than full paths. Malformed patterns are rejected when the
// template is parsed so configuration errors surface at load time.
package pathtmpl

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Template is a named, compiled work path pattern. Construct with Parse;
// the zero value matches nothing.
type Template struct {
	name    string
	pattern string
	re      *regexp.Regexp
	keys    []string
}

// Parse compiles pattern into a Template. Unterminated or empty
// placeholders, stray closing braces, and invalid key names are errors.
func Parse(name, pattern string) (Template, error) {
	if strings.TrimSpace(name) == "" {
		return Template{}, errors.New("template name is required")
	}
	if pattern == "" {
		return Template{}, fmt.Errorf("template %s: pattern is empty", name)
	}

	var (
		keys []string
		rx   strings.Builder
		lit  strings.Builder
	)
	rx.WriteString("^")
	flush := func() {
		rx.WriteString(regexp.QuoteMeta(lit.String()))
		lit.Reset()
	}
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return Template{}, fmt.Errorf("template %s: unterminated placeholder at offset %d", name, i)
			}
			key := pattern[i+1 : i+1+end]
			if !keyPattern.MatchString(key) {
				return Template{}, fmt.Errorf("template %s: invalid placeholder key %q", name, key)
			}
			flush()
			// Distinct group names per occurrence; repeated keys are
			// reconciled after matching.
			fmt.Fprintf(&rx, "(?P<p%d>[^/]+)", len(keys))
			keys = append(keys, key)
			i += end + 1
		case '}':
			return Template{}, fmt.Errorf("template %s: unmatched '}' at offset %d", name, i)
		default:
			lit.WriteByte(pattern[i])
		}
	}
	flush()
	rx.WriteString("$")

	re, err := regexp.Compile(rx.String())
	if err != nil {
		return Template{}, fmt.Errorf("template %s: %w", name, err)
	}
	return Template{name: name, pattern: pattern, re: re, keys: keys}, nil
}

// Name returns the template's registry name.
func (t Template) Name() string { return t.name }

// Pattern returns the raw placeholder pattern.
func (t Template) Pattern() string { return t.pattern }

// IsString reports whether the pattern matches bare file names instead of
// paths. String templates are applied to the base name of a delivery path.
func (t Template) IsString() bool {
	return t.pattern != "" && !strings.ContainsRune(t.pattern, '/')
}

// Keys returns the placeholder names in first-appearance order, deduplicated.
func (t Template) Keys() []string {
	out := make([]string, 0, len(t.keys))
	seen := make(map[string]bool, len(t.keys))
	for _, key := range t.keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// Fields matches path against the template and returns the extracted
// placeholder values. A key appearing more than once must resolve to the
// same value everywhere.
func (t Template) Fields(path string) (map[string]string, error) {
	if t.re == nil {
		return nil, errors.New("template is not compiled")
	}
	m := t.re.FindStringSubmatch(path)
	if m == nil {
		return nil, fmt.Errorf("path %q does not match template %s (%s)", path, t.name, t.pattern)
	}
	out := make(map[string]string, len(t.keys))
	for i, key := range t.keys {
		value := m[i+1]
		if prev, ok := out[key]; ok && prev != value {
			return nil, fmt.Errorf("path %q resolves conflicting values for %s: %q vs %q", path, key, prev, value)
		}
		out[key] = value
	}
	return out, nil
}

// Missing returns the template keys that fields does not satisfy, in
// first-appearance order. Nil and empty string values count as missing.
func (t Template) Missing(fields map[string]any) []string {
	var missing []string
	seen := make(map[string]bool, len(t.keys))
	for _, key := range t.keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		value, ok := fields[key]
		if !ok || value == nil || formatValue(value) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Apply substitutes fields into the pattern. All placeholder keys must be
// present and non-empty.
func (t Template) Apply(fields map[string]any) (string, error) {
	if missing := t.Missing(fields); len(missing) > 0 {
		return "", fmt.Errorf("template %s missing fields: %s", t.name, strings.Join(missing, ", "))
	}
	return placeholderPattern.ReplaceAllStringFunc(t.pattern, func(m string) string {
		return formatValue(fields[m[1:len(m)-1]])
	}), nil
}

func formatValue(v any) string {
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
		if value == math.Trunc(value) && math.Abs(value) < 1e15 {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

// Set is a registry of named templates built once from configuration.
type Set struct {
	byName map[string]Template
	names  []string
}

// NewSet parses every pattern and returns the registry. The first malformed
// pattern aborts the load.
func NewSet(patterns map[string]string) (*Set, error) {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	set := &Set{byName: make(map[string]Template, len(patterns)), names: names}
	for _, name := range names {
		tmpl, err := Parse(name, patterns[name])
		if err != nil {
			return nil, err
		}
		set.byName[name] = tmpl
	}
	return set, nil
}

// Get looks up a template by name.
func (s *Set) Get(name string) (Template, bool) {
	if s == nil {
		return Template{}, false
	}
	tmpl, ok := s.byName[name]
	return tmpl, ok
}

// Names returns the registered template names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// StringTemplates returns the registered string templates in name order.
func (s *Set) StringTemplates() []Template {
	if s == nil {
		return nil
	}
	var out []Template
	for _, name := range s.names {
		if tmpl := s.byName[name]; tmpl.IsString() {
			out = append(out, tmpl)
		}
	}
	return out
}

// Len reports the number of registered templates.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}
