package metadata

import (
	"strings"
	"time"
)

// Entry is one cached enrichment result keyed by a normalized part key.
type Entry struct {
	Key              string
	Description      string
	Category         string
	IsManuallyEdited bool
	EnrichedAt       time.Time
}

// NormalizeKey lowercases and trims a part key. Returns "" for blank input,
// which callers must treat as "no key".
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
