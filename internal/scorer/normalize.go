package scorer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ampersandRegexp  = regexp.MustCompile(`&`)
	nonWordRegexp    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRegexp = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, maps "&" to "and", strips non-word characters, and
// collapses whitespace — identical in effect to the Python original's
// _normalize_name.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = ampersandRegexp.ReplaceAllString(s, "and")
	s = nonWordRegexp.ReplaceAllString(s, "")
	s = whitespaceRegexp.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// editionSuffixRegexp matches a trailing parenthesized or bracketed group.
var editionSuffixRegexp = regexp.MustCompile(`[(\[]([^)\]]+)[)\]]\s*$`)

// StripEditionSuffix removes a trailing bracketed/parenthesized edition
// suffix (e.g. "(Deluxe Edition)") if its contents contain one of
// keywords, case-insensitively. A title with no matching suffix is
// returned unchanged (idempotent on suffix-free input).
func StripEditionSuffix(title string, keywords []string) string {
	loc := editionSuffixRegexp.FindStringSubmatchIndex(title)
	if loc == nil {
		return title
	}
	inner := strings.ToLower(title[loc[2]:loc[3]])
	for _, kw := range keywords {
		if strings.Contains(inner, strings.ToLower(kw)) {
			return strings.TrimSpace(title[:loc[0]])
		}
	}
	return title
}

// IsValidYear reports whether s is a plausible 4-digit year at or above
// minValidYear. It mirrors the original's _is_valid_year: must parse as an
// integer, must be constructible as a real calendar year, must clear the
// configured floor.
func IsValidYear(s string, minValidYear int) bool {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return false
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	if year < minValidYear {
		return false
	}
	// time.Date normalizes out-of-range months/days but year itself has no
	// intrinsic upper bound here beyond the future-year penalty handled by
	// the caller; this call just guards against non-numeric garbage having
	// slipped through Atoi (it never does, but keeps the contract explicit).
	_ = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return true
}

// ParseYear parses a validated 4-digit year string into an int, returning
// an error if it is not valid per IsValidYear with the given floor.
func ParseYear(s string, minValidYear int) (int, error) {
	if !IsValidYear(s, minValidYear) {
		return 0, fmt.Errorf("invalid year: %q", s)
	}
	return strconv.Atoi(s)
}
