package core

import (
	"time"
)

// LogEvent is a single raw security log record as received from an agent.
// Events are immutable once stored; the correlation engine and the reporting
// views only ever read them.
type LogEvent struct {
	ID          int64     `json:"id"`
	AlertID     string    `json:"alert_id"`
	Level       int       `json:"level"`
	Agent       string    `json:"agent"`
	Description string    `json:"description"`
	RuleID      string    `json:"rule_id,omitempty"`
	Location    string    `json:"location,omitempty"`
	FullLog     string    `json:"full_log,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SeverityBand is the coarse severity bucket derived from a LogEvent level.
type SeverityBand string

const (
	BandLow      SeverityBand = "Low"
	BandMedium   SeverityBand = "Medium"
	BandHigh     SeverityBand = "High"
	BandCritical SeverityBand = "Critical"
)

// SeverityBands lists all bands in ascending order. Reporting iterates this
// so distributions always come back in a stable order.
var SeverityBands = []SeverityBand{BandLow, BandMedium, BandHigh, BandCritical}

// BandForLevel maps a raw event level (0-15) onto its severity band.
// The banding is shared by the correlation engine and every reporting
// surface; both must bucket an event identically.
func BandForLevel(level int) SeverityBand {
	switch {
	case level >= 10:
		return BandCritical
	case level >= 7:
		return BandHigh
	case level >= 4:
		return BandMedium
	default:
		return BandLow
	}
}

// MatchText returns the text a correlation keyword is matched against.
// The description is the primary source; the raw log line is the fallback
// for events whose forwarder did not extract a description.
func (e *LogEvent) MatchText() string {
	if e.Description != "" {
		return e.Description
	}
	return e.FullLog
}
