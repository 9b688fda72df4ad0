package core

// AnalystLevel is the escalation tier of an analyst.
type AnalystLevel string

const (
	AnalystL1 AnalystLevel = "L1"
	AnalystL2 AnalystLevel = "L2"
	AnalystL3 AnalystLevel = "L3"
)

// AnalystLevels lists the valid tiers in escalation order.
var AnalystLevels = []AnalystLevel{AnalystL1, AnalystL2, AnalystL3}

// ValidAnalystLevel reports whether l is a known tier.
func ValidAnalystLevel(l AnalystLevel) bool {
	switch l {
	case AnalystL1, AnalystL2, AnalystL3:
		return true
	}
	return false
}

// Analyst is a directory entry representing a person eligible for ticket
// assignment and notification. Emails are unique across the directory.
type Analyst struct {
	ID    int64        `json:"id"`
	Level AnalystLevel `json:"level"`
	Email string       `json:"email"`
}

// Validate rejects malformed analyst records at write time.
func (a *Analyst) Validate() error {
	if !ValidAnalystLevel(a.Level) {
		return NewValidationError("level", "must be one of L1, L2, L3")
	}
	if err := ValidateEmail(a.Email); err != nil {
		return err
	}
	return nil
}
