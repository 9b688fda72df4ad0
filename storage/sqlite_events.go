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

// SQLiteEventStorage handles raw log event persistence in SQLite
type SQLiteEventStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteEventStorage creates a new SQLite event storage handler
func NewSQLiteEventStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteEventStorage {
	return &SQLiteEventStorage{
		sqlite: sqlite,
		logger: logger,
	}
}

// CreateEvent inserts a log event and backfills its generated ID.
func (ses *SQLiteEventStorage) CreateEvent(event *core.LogEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO logs (alert_id, level, agent, description, rule_id, location, full_log, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := ses.sqlite.DB.Exec(query,
		event.AlertID,
		event.Level,
		event.Agent,
		event.Description,
		event.RuleID,
		event.Location,
		event.FullLog,
		event.Timestamp.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get log event id: %w", err)
	}
	event.ID = id

	return nil
}

// GetEvent retrieves a single log event by ID
func (ses *SQLiteEventStorage) GetEvent(id int64) (*core.LogEvent, error) {
	query := `
		SELECT id, alert_id, level, agent, description, rule_id, location, full_log, timestamp
		FROM logs
		WHERE id = ?
	`

	var event core.LogEvent
	var ts string
	err := ses.sqlite.ReadDB.QueryRow(query, id).Scan(
		&event.ID,
		&event.AlertID,
		&event.Level,
		&event.Agent,
		&event.Description,
		&event.RuleID,
		&event.Location,
		&event.FullLog,
		&ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query log event: %w", err)
	}

	event.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return &event, nil
}

// SearchEvents retrieves log events matching the filters, newest first,
// together with the total match count before pagination.
func (ses *SQLiteEventStorage) SearchEvents(filters *EventFilters) ([]core.LogEvent, int64, error) {
	if filters == nil {
		filters = &EventFilters{}
	}

	where := []string{"1=1"}
	args := []interface{}{}

	if filters.Agent != "" {
		where = append(where, "agent = ?")
		args = append(args, filters.Agent)
	}
	if filters.MinLevel > 0 {
		where = append(where, "level >= ?")
		args = append(args, filters.MinLevel)
	}
	if filters.Keyword != "" {
		where = append(where, "(LOWER(alert_id) LIKE ? OR LOWER(description) LIKE ? OR LOWER(agent) LIKE ? OR LOWER(full_log) LIKE ?)")
		pattern := "%" + strings.ToLower(filters.Keyword) + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if !filters.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filters.Since.UTC().Format(TimeFormat))
	}
	if !filters.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, filters.Until.UTC().Format(TimeFormat))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM logs WHERE " + whereClause
	if err := ses.sqlite.ReadDB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count log events: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = core.DefaultSearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, alert_id, level, agent, description, rule_id, location, full_log, timestamp
		FROM logs
		WHERE %s
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, whereClause)
	args = append(args, limit, filters.Offset)

	rows, err := ses.sqlite.ReadDB.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query log events: %w", err)
	}
	defer rows.Close()

	// Initialize with make() to ensure non-nil slice for JSON serialization.
	events := make([]core.LogEvent, 0)
	for rows.Next() {
		var event core.LogEvent
		var ts string
		if err := rows.Scan(
			&event.ID,
			&event.AlertID,
			&event.Level,
			&event.Agent,
			&event.Description,
			&event.RuleID,
			&event.Location,
			&event.FullLog,
			&ts,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan log event: %w", err)
		}
		event.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating log events: %w", err)
	}

	return events, total, nil
}

// CountEventsByBand aggregates event counts per severity band.
func (ses *SQLiteEventStorage) CountEventsByBand() (map[core.SeverityBand]int64, error) {
	rows, err := ses.sqlite.ReadDB.Query("SELECT level, COUNT(*) FROM logs GROUP BY level")
	if err != nil {
		return nil, fmt.Errorf("failed to count events by level: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.SeverityBand]int64)
	for _, band := range core.SeverityBands {
		counts[band] = 0
	}
	for rows.Next() {
		var level int
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		counts[core.BandForLevel(level)] += n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating level counts: %w", err)
	}

	return counts, nil
}

// CountEventsByMinute aggregates event counts into fixed time buckets.
// Bucketing happens in Go since timestamps are stored as RFC 3339 text.
func (ses *SQLiteEventStorage) CountEventsByMinute(bucket time.Duration) (map[time.Time]int64, error) {
	if bucket <= 0 {
		bucket = 10 * time.Minute
	}

	rows, err := ses.sqlite.ReadDB.Query("SELECT timestamp FROM logs")
	if err != nil {
		return nil, fmt.Errorf("failed to query event timestamps: %w", err)
	}
	defer rows.Close()

	counts := make(map[time.Time]int64)
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan event timestamp: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			ses.logger.Warnf("Skipping unparseable event timestamp %q: %v", ts, err)
			continue
		}
		counts[t.UTC().Truncate(bucket)]++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event timestamps: %w", err)
	}

	return counts, nil
}
