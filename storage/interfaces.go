package storage

import (
	"time"

	"aegis/core"
)

// EventFilters narrows log searches. Zero values mean "no constraint".
type EventFilters struct {
	Agent    string
	MinLevel int
	Keyword  string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// EventStorageInterface defines the interface for raw log event storage.
type EventStorageInterface interface {
	CreateEvent(event *core.LogEvent) error
	GetEvent(id int64) (*core.LogEvent, error)
	SearchEvents(filters *EventFilters) ([]core.LogEvent, int64, error)
	CountEventsByBand() (map[core.SeverityBand]int64, error)
	CountEventsByMinute(bucket time.Duration) (map[time.Time]int64, error)
}

// RuleStorageInterface defines the interface for correlation rule storage.
type RuleStorageInterface interface {
	GetRules(limit, offset int) ([]core.CorrelationRule, error)
	GetEnabledRules() ([]core.CorrelationRule, error)
	GetRule(id int64) (*core.CorrelationRule, error)
	CreateRule(rule *core.CorrelationRule) error
	UpdateRule(id int64, rule *core.CorrelationRule) error
	DeleteRule(id int64) error
}

// AlertStorageInterface defines the interface for correlated alert storage.
type AlertStorageInterface interface {
	CreateAlert(alert *core.CorrelatedAlert) error
	GetAlert(id int64) (*core.CorrelatedAlert, error)
	GetAlerts(limit, offset int) ([]core.CorrelatedAlert, error)
}

// TicketFilters narrows ticket searches. Zero values mean "no constraint".
type TicketFilters struct {
	Status     core.TicketStatus
	Severity   core.Severity
	AssignedTo string
	AlertID    string
	// Keyword free-text matches alert_id, notes, and assigned_to.
	Keyword string
	Limit   int
	Offset  int
}

// TicketStorageInterface defines the interface for ticket storage.
type TicketStorageInterface interface {
	CreateTicket(ticket *core.Ticket) error
	GetTicket(id int64) (*core.Ticket, error)
	SearchTickets(filters *TicketFilters) ([]core.Ticket, int64, error)
	// UpdateTicketWithHistory commits the ticket row and its audit entries in
	// a single transaction.
	UpdateTicketWithHistory(ticket *core.Ticket, history []core.TicketHistory) error
	GetTicketHistory(ticketID int64) ([]core.TicketHistory, error)
	CountTicketsByStatus() (map[core.TicketStatus]int64, error)
}

// AnalystStorageInterface defines the interface for the analyst directory.
type AnalystStorageInterface interface {
	GetAnalysts() ([]core.Analyst, error)
	GetAnalyst(id int64) (*core.Analyst, error)
	GetAnalystsByLevel(level core.AnalystLevel) ([]core.Analyst, error)
	CreateAnalyst(analyst *core.Analyst) error
	UpdateAnalyst(id int64, analyst *core.Analyst) error
	DeleteAnalyst(id int64) error
}
