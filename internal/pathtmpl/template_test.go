package pathtmpl

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseRejectsMalformedPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"unterminated", "{shot"},
		{"stray close", "shot}.ext"},
		{"empty key", "{}.ext"},
		{"digit key", "{1shot}.ext"},
		{"nested brace", "{sh{ot}}.ext"},
		{"empty pattern", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse("t", tt.pattern); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.pattern)
			}
		})
	}
	if _, err := Parse("", "{shot}"); err == nil {
		t.Fatal("Parse with empty name succeeded, want error")
	}
}

func TestTemplateFields(t *testing.T) {
	tmpl, err := Parse("vendor_file", "{shot}_{step}_v{version}.{ext}")
	if err != nil {
		t.Fatal(err)
	}

	fields, err := tmpl.Fields("sh010_comp_v003.exr")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"shot": "sh010", "step": "comp", "version": "003", "ext": "exr"}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("Fields() = %#v, want %#v", fields, want)
	}

	if _, err := tmpl.Fields("does-not-match"); err == nil {
		t.Fatal("expected error for non-matching path")
	}
}

func TestTemplateFieldsPathPattern(t *testing.T) {
	tmpl, err := Parse("vendor_path", "{shot}/{step}/{shot}_{step}_v{version}.{ext}")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.IsString() {
		t.Fatal("pattern with separators must not be a string template")
	}

	fields, err := tmpl.Fields("sh010/comp/sh010_comp_v007.mov")
	if err != nil {
		t.Fatal(err)
	}
	if fields["shot"] != "sh010" || fields["version"] != "007" {
		t.Fatalf("unexpected fields: %#v", fields)
	}

	// Same key with two different values is a conflict, not a match.
	if _, err := tmpl.Fields("sh010/comp/sh020_comp_v007.mov"); err == nil {
		t.Fatal("expected conflict error for diverging repeated key")
	}
}

func TestTemplateApply(t *testing.T) {
	tmpl, err := Parse("vendor_file", "{shot}_{step}_v{version}.{ext}")
	if err != nil {
		t.Fatal(err)
	}

	path, err := tmpl.Apply(map[string]any{
		"shot": "sh010", "step": "comp", "version": 3, "ext": "exr",
	})
	if err != nil {
		t.Fatal(err)
	}
	if path != "sh010_comp_v3.exr" {
		t.Fatalf("Apply() = %q", path)
	}

	_, err = tmpl.Apply(map[string]any{"shot": "sh010", "step": "comp"})
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	if !strings.Contains(err.Error(), "version") || !strings.Contains(err.Error(), "ext") {
		t.Fatalf("error should name the missing fields, got %v", err)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	tmpl, err := Parse("plate", "{seq}/{shot}/plates/{shot}_{desc}.{frame}.{ext}")
	if err != nil {
		t.Fatal(err)
	}
	original := "abc/abc010/plates/abc010_bgA.1001.exr"

	fields, err := tmpl.Fields(original)
	if err != nil {
		t.Fatal(err)
	}
	anyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		anyFields[k] = v
	}
	rebuilt, err := tmpl.Apply(anyFields)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt != original {
		t.Fatalf("round trip = %q, want %q", rebuilt, original)
	}
}

func TestTemplateMissing(t *testing.T) {
	tmpl, err := Parse("vendor_file", "{shot}_{step}_v{version}.{ext}")
	if err != nil {
		t.Fatal(err)
	}
	missing := tmpl.Missing(map[string]any{"shot": "sh010", "step": "", "ext": nil})
	want := []string{"step", "version", "ext"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("Missing() = %v, want %v", missing, want)
	}
	if got := tmpl.Keys(); !reflect.DeepEqual(got, []string{"shot", "step", "version", "ext"}) {
		t.Fatalf("Keys() = %v", got)
	}
}

func TestNewSet(t *testing.T) {
	set, err := NewSet(map[string]string{
		"vendor_file": "{name}_v{version}.{ext}",
		"vendor_path": "{shot}/{name}_v{version}.{ext}",
	})
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 2 {
		t.Fatalf("Len() = %d", set.Len())
	}
	if _, ok := set.Get("vendor_file"); !ok {
		t.Fatal("vendor_file not found")
	}
	if _, ok := set.Get("absent"); ok {
		t.Fatal("unexpected template for unknown name")
	}

	strTemplates := set.StringTemplates()
	if len(strTemplates) != 1 || strTemplates[0].Name() != "vendor_file" {
		t.Fatalf("StringTemplates() = %v", strTemplates)
	}
	if got := set.Names(); !reflect.DeepEqual(got, []string{"vendor_file", "vendor_path"}) {
		t.Fatalf("Names() = %v", got)
	}
}

func TestNewSetRejectsBadPattern(t *testing.T) {
	_, err := NewSet(map[string]string{"broken": "{shot"})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Fatalf("error should name the template, got %v", err)
	}
}

func TestNilSet(t *testing.T) {
	var set *Set
	if _, ok := set.Get("x"); ok {
		t.Fatal("nil set must not resolve templates")
	}
	if set.Len() != 0 || set.Names() != nil || set.StringTemplates() != nil {
		t.Fatal("nil set accessors must return zero values")
	}
}
