package core

import (
	"time"
)

// CorrelatedAlert is the output of a correlation rule firing: a named
// cluster of log events. Alerts are created exactly once per firing and are
// immutable afterwards.
type CorrelatedAlert struct {
	ID               int64     `json:"id"`
	CorrelationType  string    `json:"correlation_type"`
	RelatedAlerts    []string  `json:"related_alerts"`
	Severity         Severity  `json:"severity"`
	AgentID          string    `json:"agent_id"`
	CorrelationNotes string    `json:"correlation_notes"`
	Timestamp        time.Time `json:"timestamp"`
}
