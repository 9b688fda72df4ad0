package core

import (
	"strings"
	"time"
)

// CorrelationRule is an operator-defined pattern used to detect clusters of
// related events: threshold or more events whose text contains the keyword
// within any window of length Interval.
type CorrelationRule struct {
	ID          int64         `json:"id"`
	RuleName    string        `json:"rule_name"`
	Keyword     string        `json:"keyword"`
	Threshold   int           `json:"threshold"`
	Interval    time.Duration `json:"interval"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Enabled     bool          `json:"enabled"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Validate rejects malformed rules at write time so invalid rules never
// reach the engine. Keyword matching is a plain case-insensitive substring
// test, so an empty or whitespace-only keyword would match every event.
func (r *CorrelationRule) Validate() error {
	if strings.TrimSpace(r.RuleName) == "" {
		return NewValidationError("rule_name", "must not be empty")
	}
	if strings.TrimSpace(r.Keyword) == "" {
		return NewValidationError("keyword", "must not be empty")
	}
	if r.Threshold < 1 {
		return NewValidationError("threshold", "must be at least 1")
	}
	if r.Interval <= 0 {
		return NewValidationError("interval", "must be a positive duration")
	}
	if !ValidSeverity(r.Severity) {
		return NewValidationError("severity", "must be one of low, medium, high, critical")
	}
	return nil
}

// Matches reports whether the event's text contains the rule keyword,
// case-insensitively. No regex, no stemming: substring matches keep the
// resulting correlation notes explainable.
func (r *CorrelationRule) Matches(event *LogEvent) bool {
	return strings.Contains(strings.ToLower(event.MatchText()), strings.ToLower(r.Keyword))
}
