package storage

import (
	"testing"

	"aegis/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seedTicket(t *testing.T, store *SQLiteTicketStorage, alertID string, severity core.Severity) *core.Ticket {
	t.Helper()

	ticket := &core.Ticket{
		AlertID:     alertID,
		Severity:    severity,
		ClientEmail: "client@example.com",
	}
	require.NoError(t, store.CreateTicket(ticket))
	return ticket
}

func TestTicketStorageCreateDefaultsToNew(t *testing.T) {
	s := newTestSQLite(t)
	store := NewSQLiteTicketStorage(s, zaptest.NewLogger(t).Sugar())

	ticket := seedTicket(t, store, "alert-1", core.SeverityHigh)
	assert.Greater(t, ticket.ID, int64(0))
	assert.Equal(t, core.TicketStatusNew, ticket.Status)

	got, err := store.GetTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TicketStatusNew, got.Status)
	assert.Equal(t, "client@example.com", got.ClientEmail)
	assert.Empty(t, got.AssignedTo)
}

func TestTicketStorageGetMissing(t *testing.T) {
	s := newTestSQLite(t)
	store := NewSQLiteTicketStorage(s, zaptest.NewLogger(t).Sugar())

	_, err := store.GetTicket(77)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketStorageUpdateWithHistory(t *testing.T) {
	s := newTestSQLite(t)
	store := NewSQLiteTicketStorage(s, zaptest.NewLogger(t).Sugar())

	ticket := seedTicket(t, store, "alert-1", core.SeverityHigh)

	ticket.Status = core.TicketStatusInProgress
	ticket.AssignedTo = "analyst1@example.com"
	history := []core.TicketHistory{
		{FieldChanged: "status", OldValue: "new", NewValue: "in_progress", ChangedBy: "analyst1@example.com"},
		{FieldChanged: "assigned_to", OldValue: "", NewValue: "analyst1@example.com", ChangedBy: "analyst1@example.com"},
	}
	require.NoError(t, store.UpdateTicketWithHistory(ticket, history))

	got, err := store.GetTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TicketStatusInProgress, got.Status)
	assert.Equal(t, "analyst1@example.com", got.AssignedTo)

	entries, err := store.GetTicketHistory(ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "status", entries[0].FieldChanged)
	assert.Equal(t, "in_progress", entries[0].NewValue)
	assert.Equal(t, ticket.ID, entries[0].TicketID)
}

func TestTicketStorageUpdateMissingRollsBackHistory(t *testing.T) {
	s := newTestSQLite(t)
	store := NewSQLiteTicketStorage(s, zaptest.NewLogger(t).Sugar())

	ghost := &core.Ticket{ID: 404, Status: core.TicketStatusResolved, Severity: core.SeverityLow}
	err := store.UpdateTicketWithHistory(ghost, []core.TicketHistory{
		{FieldChanged: "status", OldValue: "new", NewValue: "resolved"},
	})
	assert.ErrorIs(t, err, ErrTicketNotFound)

	var count int64
	require.NoError(t, s.ReadDB.QueryRow("SELECT COUNT(*) FROM ticket_history").Scan(&count))
	assert.Equal(t, int64(0), count)
}

func TestTicketStorageSearchFilters(t *testing.T) {
	s := newTestSQLite(t)
	store := NewSQLiteTicketStorage(s, zaptest.NewLogger(t).Sugar())

	seedTicket(t, store, "alert-1", core.SeverityHigh)
	seedTicket(t, store, "alert-2", core.SeverityLow)
	resolved := seedTicket(t, store, "alert-3", core.SeverityHigh)
	resolved.Status = core.TicketStatusResolved
	require.NoError(t, store.UpdateTicketWithHistory(resolved, nil))

	tickets, total, err := store.SearchTickets(&TicketFilters{Severity: core.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tickets, 2)

	tickets, total, err = store.SearchTickets(&TicketFilters{Status: core.TicketStatusResolved})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tickets, 1)
	assert.Equal(t, "alert-3", tickets[0].AlertID)

	_, total, err = store.SearchTickets(&TicketFilters{AlertID: "alert-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = store.SearchTickets(&TicketFilters{Keyword: "ALERT-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTicketStorageCountByStatus(t *testing.T) {
	s := newTestSQLite(t)
	store := NewSQLiteTicketStorage(s, zaptest.NewLogger(t).Sugar())

	seedTicket(t, store, "alert-1", core.SeverityHigh)
	seedTicket(t, store, "alert-2", core.SeverityHigh)
	resolved := seedTicket(t, store, "alert-3", core.SeverityLow)
	resolved.Status = core.TicketStatusResolved
	require.NoError(t, store.UpdateTicketWithHistory(resolved, nil))

	counts, err := store.CountTicketsByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[core.TicketStatusNew])
	assert.Equal(t, int64(0), counts[core.TicketStatusInProgress])
	assert.Equal(t, int64(1), counts[core.TicketStatusResolved])
}
