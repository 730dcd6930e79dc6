package updateexec

import (
	"strings"
	"unicode"
)

// maxFieldLength bounds a single field value; anything longer is rejected
// rather than silently truncated, since truncation could change meaning
// (e.g. cut a genre name mid-word).
const maxFieldLength = 1000

// validateFieldValue enforces the §4.10 step-1 security validator: length,
// control characters, and normalization. It returns the normalized value
// and whether it passed.
func validateFieldValue(value string) (string, bool) {
	if len(value) > maxFieldLength {
		return "", false
	}
	for _, r := range value {
		if unicode.IsControl(r) && r != '\t' {
			return "", false
		}
	}
	return strings.TrimSpace(value), true
}
