package core

import (
	"time"
)

// TicketStatus is the lifecycle state of an incident ticket.
type TicketStatus string

const (
	// TicketStatusNew is the initial state of every ticket.
	TicketStatusNew TicketStatus = "new"
	// TicketStatusInProgress means an analyst has been assigned.
	TicketStatusInProgress TicketStatus = "in_progress"
	// TicketStatusResolved is terminal but reversible via reopen.
	TicketStatusResolved TicketStatus = "resolved"
)

// ValidTicketStatus reports whether s is a known lifecycle state.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// Ticket is an incident-tracking record referencing an alert. The alert_id
// is deliberately free text rather than a foreign key: operators file
// tickets against raw event ids, correlated alert ids, and external
// references alike. Tickets are never deleted.
type Ticket struct {
	ID          int64        `json:"id"`
	AlertID     string       `json:"alert_id"`
	Status      TicketStatus `json:"status"`
	Severity    Severity     `json:"severity"`
	AssignedTo  string       `json:"assigned_to,omitempty"`
	ClientEmail string       `json:"client_email"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TicketHistory records a single field change on a ticket. A row is written
// for every assign, close, and reopen so the full audit trail of a ticket
// can be reconstructed.
type TicketHistory struct {
	ID           int64     `json:"id"`
	TicketID     int64     `json:"ticket_id"`
	FieldChanged string    `json:"field_changed"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
	ChangedBy    string    `json:"changed_by"`
	ChangedAt    time.Time `json:"changed_at"`
}
