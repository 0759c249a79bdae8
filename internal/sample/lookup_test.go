package sample

import "testing"

func TestLookup(t *testing.T) {
	raw := map[string]any{
		"fat":  5.5,
		"zero": 0.0,
		"str":  "12.8",
		"wrap": map[string]any{"value": 3.3},
		"junk": "not-a-number",
		"inference": map[string]any{
			"fat":           4.1,
			"snf":           8.6,
			"nested-string": "9.9",
		},
	}

	tests := []struct {
		name   string
		keys   []string
		want   float64
		wantOK bool
	}{
		{"top-level-wins-over-nested", []string{"fat"}, 5.5, true},
		{"falls-back-to-inference", []string{"snf"}, 8.6, true},
		{"zero-is-a-valid-reading", []string{"zero"}, 0.0, true},
		{"numeric-string", []string{"str"}, 12.8, true},
		{"value-wrapper", []string{"wrap"}, 3.3, true},
		{"nested-numeric-string", []string{"nested-string"}, 9.9, true},
		{"unparseable-string", []string{"junk"}, 0, false},
		{"absent-everywhere", []string{"nope"}, 0, false},
		{"first-key-priority", []string{"missing", "fat"}, 5.5, true},
		// 先查完整个顶层，再降级到 inference 块
		{"top-level-tier-first", []string{"snf", "fat"}, 5.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(raw, tt.keys...)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Lookup(%v) = (%v, %v), want (%v, %v)", tt.keys, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	t.Run("nil-raw", func(t *testing.T) {
		if _, ok := Lookup(nil, "fat"); ok {
			t.Error("nil raw should never resolve")
		}
	})
}

func TestLookupString(t *testing.T) {
	raw := map[string]any{
		"supplier_id": "SUP-9",
		"empty":       "",
		"inference": map[string]any{
			"route_id": "ROUTE-X",
		},
	}

	if v, ok := LookupString(raw, "supplier_id"); !ok || v != "SUP-9" {
		t.Errorf("supplier_id = (%q, %v)", v, ok)
	}
	if v, ok := LookupString(raw, "route_id"); !ok || v != "ROUTE-X" {
		t.Errorf("route_id = (%q, %v)", v, ok)
	}
	if _, ok := LookupString(raw, "empty"); ok {
		t.Error("empty string should count as missing")
	}
	if _, ok := LookupString(raw, "absent"); ok {
		t.Error("absent key should not resolve")
	}
}
