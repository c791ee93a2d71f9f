package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

// CacheKey identifies one business as seen by one model.
type CacheKey struct {
	Model string

	BusinessName string
	Website      string
	ProfileURL   string
	Phone        string
	Email        string
}

// KeyFor builds the cache key for a record from every attribute the prompt
// carries.
func KeyFor(r record.Record, model string) CacheKey {
	return CacheKey{
		Model:        model,
		BusinessName: r.BusinessName,
		Website:      r.Website,
		ProfileURL:   r.ProfileURL,
		Phone:        r.Phone,
		Email:        r.Email,
	}
}

// String generates a deterministic cache key string.
// Format: enricher:owner:<model>:<sha256 of normalised attributes, 32 hex chars>
//
// Example:
//
//	enricher:owner:gemini-2.5-flash:3f1c0a...
func (k CacheKey) String() string {
	fields := []string{
		normalizeText(k.BusinessName),
		normalizeURL(k.Website),
		normalizeURL(k.ProfileURL),
		normalizePhone(k.Phone),
		normalizeText(k.Email),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))

	model := strings.ToLower(strings.TrimSpace(k.Model))
	if model == "" {
		model = "default"
	}
	return strings.Join([]string{"enricher", "owner", model, hex.EncodeToString(sum[:16])}, ":")
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeURL(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
