package cache

import (
	"strings"
	"testing"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

func TestCacheKey_String_Format(t *testing.T) {
	key := CacheKey{Model: "gemini-2.5-flash", BusinessName: "Acme Plumbing"}
	got := key.String()

	if !strings.HasPrefix(got, "enricher:owner:gemini-2.5-flash:") {
		t.Errorf("CacheKey.String() = %v, want enricher:owner:<model>: prefix", got)
	}
	parts := strings.Split(got, ":")
	if len(parts) != 4 || len(parts[3]) != 32 {
		t.Errorf("CacheKey.String() = %v, want 4 parts with a 32 char digest", got)
	}
}

func TestCacheKey_Normalisation(t *testing.T) {
	base := CacheKey{
		Model:        "gemini-2.5-flash",
		BusinessName: "Acme Plumbing",
		Website:      "acme.example",
		Phone:        "+1 555 0100",
	}

	tests := []struct {
		name string
		key  CacheKey
	}{
		{
			name: "case and spacing in name",
			key: CacheKey{Model: "gemini-2.5-flash", BusinessName: "  ACME   plumbing ",
				Website: "acme.example", Phone: "+1 555 0100"},
		},
		{
			name: "url scheme and www",
			key: CacheKey{Model: "gemini-2.5-flash", BusinessName: "Acme Plumbing",
				Website: "https://www.acme.example/", Phone: "+1 555 0100"},
		},
		{
			name: "phone punctuation",
			key: CacheKey{Model: "gemini-2.5-flash", BusinessName: "Acme Plumbing",
				Website: "acme.example", Phone: "+1 (555) 01-00"},
		},
		{
			name: "model case",
			key: CacheKey{Model: "Gemini-2.5-Flash", BusinessName: "Acme Plumbing",
				Website: "acme.example", Phone: "+1 555 0100"},
		},
	}

	want := base.String()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != want {
				t.Errorf("CacheKey.String() = %v, want %v", got, want)
			}
		})
	}
}

func TestCacheKey_Distinct(t *testing.T) {
	a := CacheKey{Model: "m", BusinessName: "Acme Plumbing"}
	b := CacheKey{Model: "m", BusinessName: "Acme Roofing"}
	c := CacheKey{Model: "other", BusinessName: "Acme Plumbing"}
	// Field boundaries must matter.
	d := CacheKey{Model: "m", BusinessName: "Acme", Website: "plumbing"}
	// Rows differing only in email get their own answers.
	e := CacheKey{Model: "m", BusinessName: "Acme Plumbing", Email: "owner@acme.example"}
	f := CacheKey{Model: "m", BusinessName: "Acme Plumbing", Email: "info@acme.example"}

	keys := map[string]string{}
	for name, k := range map[string]CacheKey{"a": a, "b": b, "c": c, "d": d, "e": e, "f": f} {
		s := k.String()
		if other, ok := keys[s]; ok {
			t.Errorf("keys %s and %s collide: %s", name, other, s)
		}
		keys[s] = name
	}
}

func TestKeyFor(t *testing.T) {
	r := record.Record{
		ID:             "row-1",
		BusinessName:   "Acme",
		Website:        "acme.example",
		ProfileURL:     "https://maps.example/acme",
		Phone:          "555",
		Email:          "info@acme.example",
		OwnerFirstName: "Ada",
	}

	got := KeyFor(r, "m")
	want := CacheKey{Model: "m", BusinessName: "Acme", Website: "acme.example",
		ProfileURL: "https://maps.example/acme", Phone: "555", Email: "info@acme.example"}
	if got != want {
		t.Errorf("KeyFor() = %+v, want %+v", got, want)
	}

	// Id and enrichment fields do not influence the key.
	r.ID = "row-2"
	r.OwnerFirstName = ""
	if KeyFor(r, "m").String() != want.String() {
		t.Error("KeyFor() depends on id or enrichment fields")
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Model:        "gemini-2.5-flash",
		BusinessName: "Acme Plumbing",
		Website:      "https://acme.example",
		ProfileURL:   "https://maps.example/acme",
		Phone:        "+1 555 0100",
	}

	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		results[i] = key.String()
	}

	first := results[0]
	for i, result := range results {
		if result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}
