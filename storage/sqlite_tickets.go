package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"aegis/core"

	"go.uber.org/zap"
)

// SQLiteTicketStorage handles incident ticket persistence in SQLite
type SQLiteTicketStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteTicketStorage creates a new SQLite ticket storage handler
func NewSQLiteTicketStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteTicketStorage {
	return &SQLiteTicketStorage{
		sqlite: sqlite,
		logger: logger,
	}
}

const ticketColumns = "id, alert_id, status, severity, assigned_to, client_email, notes, created_at, updated_at"

func scanTicket(scanner interface{ Scan(...interface{}) error }) (*core.Ticket, error) {
	var ticket core.Ticket
	var createdAt, updatedAt string

	err := scanner.Scan(
		&ticket.ID,
		&ticket.AlertID,
		&ticket.Status,
		&ticket.Severity,
		&ticket.AssignedTo,
		&ticket.ClientEmail,
		&ticket.Notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ticket.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	ticket.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &ticket, nil
}

// CreateTicket inserts a ticket and backfills its generated ID.
func (sts *SQLiteTicketStorage) CreateTicket(ticket *core.Ticket) error {
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = core.TicketStatusNew
	}

	query := `
		INSERT INTO tickets (alert_id, status, severity, assigned_to, client_email, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sts.sqlite.DB.Exec(query,
		ticket.AlertID,
		ticket.Status,
		ticket.Severity,
		ticket.AssignedTo,
		ticket.ClientEmail,
		ticket.Notes,
		now.Format(TimeFormat),
		now.Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get ticket id: %w", err)
	}
	ticket.ID = id

	return nil
}

// GetTicket retrieves a single ticket by ID
func (sts *SQLiteTicketStorage) GetTicket(id int64) (*core.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE id = ?", ticketColumns)

	ticket, err := scanTicket(sts.sqlite.ReadDB.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket: %w", err)
	}

	return ticket, nil
}

// SearchTickets retrieves tickets matching the filters, newest first,
// together with the total match count before pagination.
func (sts *SQLiteTicketStorage) SearchTickets(filters *TicketFilters) ([]core.Ticket, int64, error) {
	if filters == nil {
		filters = &TicketFilters{}
	}

	where := []string{"1=1"}
	args := []interface{}{}

	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filters.Severity)
	}
	if filters.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filters.AssignedTo)
	}
	if filters.AlertID != "" {
		where = append(where, "alert_id = ?")
		args = append(args, filters.AlertID)
	}
	if filters.Keyword != "" {
		where = append(where, "(LOWER(alert_id) LIKE ? OR LOWER(notes) LIKE ? OR LOWER(assigned_to) LIKE ?)")
		pattern := "%" + strings.ToLower(filters.Keyword) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM tickets WHERE " + whereClause
	if err := sts.sqlite.ReadDB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = core.DefaultSearchLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tickets
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, ticketColumns, whereClause)
	args = append(args, limit, filters.Offset)

	rows, err := sts.sqlite.ReadDB.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	// Initialize with make() to ensure non-nil slice for JSON serialization.
	tickets := make([]core.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, *ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, total, nil
}

// UpdateTicketWithHistory commits the ticket row and its audit entries in a
// single transaction. Either everything lands or nothing does, so the audit
// trail never drifts from the ticket row.
func (sts *SQLiteTicketStorage) UpdateTicketWithHistory(ticket *core.Ticket, history []core.TicketHistory) error {
	ticket.UpdatedAt = time.Now().UTC()

	tx, err := sts.sqlite.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE tickets
		SET status = ?, severity = ?, assigned_to = ?, client_email = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		ticket.Status,
		ticket.Severity,
		ticket.AssignedTo,
		ticket.ClientEmail,
		ticket.Notes,
		ticket.UpdatedAt.UTC().Format(TimeFormat),
		ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrTicketNotFound
	}

	for _, h := range history {
		changedAt := h.ChangedAt
		if changedAt.IsZero() {
			changedAt = ticket.UpdatedAt
		}
		_, err := tx.Exec(`
			INSERT INTO ticket_history (ticket_id, field_changed, old_value, new_value, changed_by, changed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			ticket.ID,
			h.FieldChanged,
			h.OldValue,
			h.NewValue,
			h.ChangedBy,
			changedAt.UTC().Format(TimeFormat),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ticket history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket update: %w", err)
	}

	return nil
}

// GetTicketHistory retrieves the audit trail for a ticket, oldest first
func (sts *SQLiteTicketStorage) GetTicketHistory(ticketID int64) ([]core.TicketHistory, error) {
	query := `
		SELECT id, ticket_id, field_changed, old_value, new_value, changed_by, changed_at
		FROM ticket_history
		WHERE ticket_id = ?
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := sts.sqlite.ReadDB.Query(query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket history: %w", err)
	}
	defer rows.Close()

	entries := make([]core.TicketHistory, 0)
	for rows.Next() {
		var h core.TicketHistory
		var changedAt string
		if err := rows.Scan(
			&h.ID,
			&h.TicketID,
			&h.FieldChanged,
			&h.OldValue,
			&h.NewValue,
			&h.ChangedBy,
			&changedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ticket history: %w", err)
		}
		h.ChangedAt, _ = time.Parse(time.RFC3339Nano, changedAt)
		entries = append(entries, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket history: %w", err)
	}

	return entries, nil
}

// CountTicketsByStatus aggregates ticket counts per workflow status.
func (sts *SQLiteTicketStorage) CountTicketsByStatus() (map[core.TicketStatus]int64, error) {
	rows, err := sts.sqlite.ReadDB.Query("SELECT status, COUNT(*) FROM tickets GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets by status: %w", err)
	}
	defer rows.Close()

	counts := map[core.TicketStatus]int64{
		core.TicketStatusNew:        0,
		core.TicketStatusInProgress: 0,
		core.TicketStatusResolved:   0,
	}
	for rows.Next() {
		var status core.TicketStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}
