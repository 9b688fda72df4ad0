package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aegis/core"

	"go.uber.org/zap"
)

// SQLiteAlertStorage handles correlated alert persistence in SQLite
type SQLiteAlertStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAlertStorage creates a new SQLite correlated alert storage handler
func NewSQLiteAlertStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteAlertStorage {
	return &SQLiteAlertStorage{
		sqlite: sqlite,
		logger: logger,
	}
}

// CreateAlert inserts a correlated alert and backfills its generated ID.
func (sas *SQLiteAlertStorage) CreateAlert(alert *core.CorrelatedAlert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	relatedJSON, err := json.Marshal(alert.RelatedAlerts)
	if err != nil {
		return fmt.Errorf("failed to marshal related alerts: %w", err)
	}

	query := `
		INSERT INTO correlated_alerts (correlation_type, related_alerts, severity, agent_id, correlation_notes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sas.sqlite.DB.Exec(query,
		alert.CorrelationType,
		string(relatedJSON),
		alert.Severity,
		alert.AgentID,
		alert.CorrelationNotes,
		alert.Timestamp.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert correlated alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get correlated alert id: %w", err)
	}
	alert.ID = id

	return nil
}

// GetAlert retrieves a single correlated alert by ID
func (sas *SQLiteAlertStorage) GetAlert(id int64) (*core.CorrelatedAlert, error) {
	query := `
		SELECT id, correlation_type, related_alerts, severity, agent_id, correlation_notes, timestamp
		FROM correlated_alerts
		WHERE id = ?
	`

	var alert core.CorrelatedAlert
	var relatedJSON, ts string
	err := sas.sqlite.ReadDB.QueryRow(query, id).Scan(
		&alert.ID,
		&alert.CorrelationType,
		&relatedJSON,
		&alert.Severity,
		&alert.AgentID,
		&alert.CorrelationNotes,
		&ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query correlated alert: %w", err)
	}

	if err := json.Unmarshal([]byte(relatedJSON), &alert.RelatedAlerts); err != nil {
		return nil, fmt.Errorf("failed to parse related alerts for alert %d: %w", id, err)
	}
	alert.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)

	return &alert, nil
}

// GetAlerts retrieves correlated alerts with pagination, newest first
func (sas *SQLiteAlertStorage) GetAlerts(limit, offset int) ([]core.CorrelatedAlert, error) {
	if limit <= 0 {
		limit = core.DefaultSearchLimit
	}

	query := `
		SELECT id, correlation_type, related_alerts, severity, agent_id, correlation_notes, timestamp
		FROM correlated_alerts
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sas.sqlite.ReadDB.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlated alerts: %w", err)
	}
	defer rows.Close()

	// Initialize with make() to ensure non-nil slice for JSON serialization.
	alerts := make([]core.CorrelatedAlert, 0)
	for rows.Next() {
		var alert core.CorrelatedAlert
		var relatedJSON, ts string
		if err := rows.Scan(
			&alert.ID,
			&alert.CorrelationType,
			&relatedJSON,
			&alert.Severity,
			&alert.AgentID,
			&alert.CorrelationNotes,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correlated alert: %w", err)
		}

		if err := json.Unmarshal([]byte(relatedJSON), &alert.RelatedAlerts); err != nil {
			sas.logger.Warnf("Failed to parse related alerts for alert %d: %v", alert.ID, err)
			continue
		}
		alert.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correlated alerts: %w", err)
	}

	return alerts, nil
}
