// Package fingerprint computes deterministic SHA-256 fingerprints over
// canonical track attributes, for content-based cache invalidation instead
// of wasteful time-based TTL expiration (see spec §4.1).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/barad1tos/reconciler/internal/kinds"
)

// requiredProperties must be present (and, for persistent_id, non-blank).
var requiredProperties = []string{"persistent_id", "location"}

// optionalNumeric and optionalString default when absent.
var optionalNumeric = []string{"file_size", "duration"}
var optionalString = []string{"date_modified", "date_added"}

// Attrs is the raw, loosely-typed track attribute bag a caller fingerprints.
// Values may be any JSON-ish scalar; Generate normalizes them.
type Attrs map[string]any

// Generate produces a 64-hex SHA-256 fingerprint for the given track
// attributes. It fails with kinds.ErrMissingRequired if persistent_id is
// absent/blank or location is absent.
func Generate(attrs Attrs) (string, error) {
	for _, key := range requiredProperties {
		if _, ok := attrs[key]; !ok {
			return "", fmt.Errorf("%w: %s", kinds.ErrMissingRequired, key)
		}
	}
	if id, ok := attrs["persistent_id"].(string); ok && strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: persistent_id is blank", kinds.ErrMissingRequired)
	}
	if id, ok := attrs["persistent_id"]; ok {
		if s := normalizeString(id); strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: persistent_id is blank", kinds.ErrMissingRequired)
		}
	}

	canonical := make(map[string]any, len(requiredProperties)+len(optionalNumeric)+len(optionalString))
	for _, key := range requiredProperties {
		canonical[key] = normalizeString(attrs[key])
	}
	for _, key := range optionalNumeric {
		canonical[key] = normalizeNumeric(attrs[key])
	}
	for _, key := range optionalString {
		canonical[key] = normalizeString(attrs[key])
	}

	canonicalJSON, err := canonicalize(canonical)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint data: %w", err)
	}

	sum := sha256.Sum256([]byte(canonicalJSON))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize produces sorted-key, minimal-separator JSON — Go's
// encoding/json already sorts map[string]any keys on marshal, and its
// default separators have no extraneous whitespace, so this is exactly the
// canonical form the original's json.dumps(sort_keys=True,
// separators=(",", ":")) produces.
func canonicalize(data map[string]any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeString(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func normalizeNumeric(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0.0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if t == "" {
			return 0.0
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}

// Validate reports whether fp looks like a 64-hex-character SHA-256 digest.
func Validate(fp string) bool {
	if len(fp) != 64 {
		return false
	}
	_, err := hex.DecodeString(fp)
	return err == nil
}

// Match reports whether two fingerprints are equal, case-insensitively,
// after validating both. An invalid fingerprint never matches.
func Match(a, b string) bool {
	if !Validate(a) || !Validate(b) {
		return false
	}
	return strings.EqualFold(a, b)
}
