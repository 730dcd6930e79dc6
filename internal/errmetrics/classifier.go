// Package errmetrics implements the error-metrics subsystem (spec §4.12):
// a regex classifier, a per-minute rate tracker with trend detection, a
// per-signature pattern detector, and a collector with an alert-handler
// chain.
package errmetrics

import (
	"regexp"

	"github.com/barad1tos/reconciler/internal/model"
)

// classifierRule is one entry in the classifier's ordered rule table.
type classifierRule struct {
	pattern  *regexp.Regexp
	category model.ErrorCategory
	severity model.ErrorSeverity
}

// defaultRules mirrors the shape of the Python original's regex rule
// table: ordered, first match wins, case-insensitive.
var defaultRules = []classifierRule{
	{regexp.MustCompile(`(?i)connection (refused|reset)|connect:`), model.CategoryNetwork, model.SeverityHigh},
	{regexp.MustCompile(`(?i)time(d)? ?out|deadline exceeded`), model.CategoryTimeout, model.SeverityMedium},
	{regexp.MustCompile(`(?i)database is locked|deadlock|constraint violation|sql`), model.CategoryDatabase, model.SeverityHigh},
	{regexp.MustCompile(`(?i)invalid (input|argument|value)|validation failed`), model.CategoryValidation, model.SeverityLow},
	{regexp.MustCompile(`(?i)missing required|config(uration)? error|unset environment`), model.CategoryConfiguration, model.SeverityCritical},
	{regexp.MustCompile(`(?i)permission denied|forbidden|unauthorized`), model.CategoryPermission, model.SeverityHigh},
	{regexp.MustCompile(`(?i)rate limit|too many requests|429`), model.CategoryRateLimit, model.SeverityMedium},
	{regexp.MustCompile(`(?i)api (error|failure)|http [45]\d\d`), model.CategoryAPI, model.SeverityMedium},
	{regexp.MustCompile(`(?i)corrupt|checksum mismatch|unexpected format`), model.CategoryCorruption, model.SeverityCritical},
}

// Classifier matches an error's (exceptionType, message, stackTrace) triple
// against an ordered rule table. The first matching rule wins; no match
// falls back to (UNKNOWN, MEDIUM).
type Classifier struct {
	rules []classifierRule
}

// NewClassifier returns a Classifier seeded with the default rule table.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules}
}

// NewClassifierWithRules allows callers to supply a custom rule table
// (e.g. loaded from configuration), still evaluated first-match-wins.
func NewClassifierWithRules(rules []classifierRule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the category and severity for an error occurrence. Per
// spec, matching is against exceptionType + " " + message, with up to the
// first 500 characters of stackTrace appended when present.
func (c *Classifier) Classify(exceptionType, message, stackTrace string) (model.ErrorCategory, model.ErrorSeverity) {
	haystack := exceptionType + " " + message
	if stackTrace != "" {
		if len(stackTrace) > 500 {
			stackTrace = stackTrace[:500]
		}
		haystack += " " + stackTrace
	}
	for _, rule := range c.rules {
		if rule.pattern.MatchString(haystack) {
			return rule.category, rule.severity
		}
	}
	return model.CategoryUnknown, model.SeverityMedium
}
