package core

// Severity is the operator-assigned severity of a correlation rule, a
// correlated alert, or a ticket.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for threshold comparisons (notification
// filtering). Unknown severities rank lowest.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ValidSeverity reports whether s is one of the four known severities.
func ValidSeverity(s Severity) bool {
	_, ok := severityRank[s]
	return ok
}

// SeverityAtLeast reports whether s ranks at or above min. An empty min
// matches everything.
func SeverityAtLeast(s, min Severity) bool {
	if min == "" {
		return true
	}
	return severityRank[s] >= severityRank[min]
}
