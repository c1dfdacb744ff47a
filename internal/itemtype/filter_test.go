package itemtype

import (
	"strings"
	"testing"
)

func TestParseFilterForms(t *testing.T) {
	f, err := ParseFilter("step", "%eq:comp:true%")
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindOperator || f.Name != "eq" || f.Expected != "comp" || f.Result != "true" {
		t.Fatalf("unexpected filter: %#v", f)
	}

	f, err = ParseFilter("manifest_name", "#startswith:sh:true#")
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindValueMethod || f.Name != "startswith" || f.Expected != "sh" {
		t.Fatalf("unexpected filter: %#v", f)
	}
}

func TestParseFilterRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"unknown operator", "%bogus:a:b%", "unknown operator"},
		{"unknown value method", "#upper:a:b#", "unknown value method"},
		{"missing parts", "%eq:a%", "three colon-separated parts"},
		{"no delimiters", "eq:a:b", "not of the form"},
		{"mixed delimiters", "%eq:a:b#", "not of the form"},
		{"bad regex", "%matches:[:true%", "error parsing regexp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter("field", tt.raw)
			if err == nil {
				t.Fatalf("ParseFilter(%q) succeeded, want error", tt.raw)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if _, err := ParseFilter("  ", "%eq:a:b%"); err == nil {
		t.Fatal("expected error for blank field name")
	}
}

func TestFilterMatchOperators(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		value any
		want  bool
	}{
		{"eq string match", "%eq:exr:true%", "exr", true},
		{"eq string miss", "%eq:exr:true%", "mov", false},
		{"eq numeric", "%eq:3:true%", 3, true},
		{"eq numeric float expected", "%eq:3.0:true%", 3, true},
		{"eq uncoercible expected", "%eq:three:true%", 3, false},
		{"ne", "%ne:exr:true%", "mov", true},
		{"ne equal value", "%ne:exr:true%", "exr", false},
		{"lt numeric", "%lt:10:true%", 7, true},
		{"le boundary", "%le:7:true%", 7, true},
		{"gt string", "%gt:abc:true%", "abd", true},
		{"ge numeric miss", "%ge:10:true%", 7.5, false},
		{"contains substring", "%contains:comp:true%", "sh010_comp_v003", true},
		{"contains slice element", "%contains:main:true%", []any{"main", "proxy"}, true},
		{"contains miss", "%contains:matte:true%", "sh010_comp_v003", false},
		{"matches", "%matches:^sh[0-9]+_:true%", "sh010_comp", true},
		{"matches miss", "%matches:^sh[0-9]+_:true%", "comp_sh010", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter("field", tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Match(tt.value); got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFilterMatchValueMethods(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		value any
		want  bool
	}{
		{"startswith", "#startswith:delivery:true#", "delivery_v002", true},
		{"endswith", "#endswith:_v002:true#", "delivery_v002", true},
		{"contains", "#contains:_v0:true#", "delivery_v002", true},
		// Non-boolean results compare against the coerced expected result.
		{"count match", "#count:v:2#", "delivery_v002", true},
		{"count miss", "#count:v:3#", "delivery_v002", false},
		{"count uncoercible result", "#count:v:two#", "delivery_v002", false},
		{"find match", "#find:_:8#", "delivery_v002", true},
		{"find absent", "#find:?:-1#", "delivery_v002", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter("field", tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Match(tt.value); got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFilterMatchEmptyValues(t *testing.T) {
	f, err := ParseFilter("field", "%eq:0:true%")
	if err != nil {
		t.Fatal(err)
	}
	// Absent and empty field values never match, even against an expected
	// value they would otherwise equal.
	for _, value := range []any{nil, "", 0, 0.0, false, []any{}, map[string]any{}} {
		if f.Match(value) {
			t.Errorf("Match(%#v) = true, want false", value)
		}
	}
}
