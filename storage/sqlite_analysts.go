package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"aegis/core"

	"go.uber.org/zap"
)

// SQLiteAnalystStorage handles the analyst directory in SQLite
type SQLiteAnalystStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAnalystStorage creates a new SQLite analyst storage handler
func NewSQLiteAnalystStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteAnalystStorage {
	return &SQLiteAnalystStorage{
		sqlite: sqlite,
		logger: logger,
	}
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
// The driver exposes no typed error for this, so match on the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetAnalysts retrieves all analysts ordered by level then email
func (sas *SQLiteAnalystStorage) GetAnalysts() ([]core.Analyst, error) {
	query := `
		SELECT id, level, email
		FROM analysts
		ORDER BY level, email
	`

	rows, err := sas.sqlite.ReadDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysts: %w", err)
	}
	defer rows.Close()

	// Initialize with make() to ensure non-nil slice for JSON serialization.
	analysts := make([]core.Analyst, 0)
	for rows.Next() {
		var a core.Analyst
		if err := rows.Scan(&a.ID, &a.Level, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan analyst: %w", err)
		}
		analysts = append(analysts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysts: %w", err)
	}

	return analysts, nil
}

// GetAnalyst retrieves a single analyst by ID
func (sas *SQLiteAnalystStorage) GetAnalyst(id int64) (*core.Analyst, error) {
	var a core.Analyst
	err := sas.sqlite.ReadDB.QueryRow("SELECT id, level, email FROM analysts WHERE id = ?", id).
		Scan(&a.ID, &a.Level, &a.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalystNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analyst: %w", err)
	}

	return &a, nil
}

// GetAnalystsByLevel retrieves all analysts at a given tier
func (sas *SQLiteAnalystStorage) GetAnalystsByLevel(level core.AnalystLevel) ([]core.Analyst, error) {
	query := `
		SELECT id, level, email
		FROM analysts
		WHERE level = ?
		ORDER BY email
	`

	rows, err := sas.sqlite.ReadDB.Query(query, level)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysts by level: %w", err)
	}
	defer rows.Close()

	analysts := make([]core.Analyst, 0)
	for rows.Next() {
		var a core.Analyst
		if err := rows.Scan(&a.ID, &a.Level, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan analyst: %w", err)
		}
		analysts = append(analysts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysts: %w", err)
	}

	return analysts, nil
}

// CreateAnalyst inserts an analyst and backfills the generated ID.
func (sas *SQLiteAnalystStorage) CreateAnalyst(analyst *core.Analyst) error {
	result, err := sas.sqlite.DB.Exec(
		"INSERT INTO analysts (level, email) VALUES (?, ?)",
		analyst.Level, analyst.Email,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert analyst: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get analyst id: %w", err)
	}
	analyst.ID = id

	return nil
}

// UpdateAnalyst replaces an analyst's level and email.
func (sas *SQLiteAnalystStorage) UpdateAnalyst(id int64, analyst *core.Analyst) error {
	result, err := sas.sqlite.DB.Exec(
		"UPDATE analysts SET level = ?, email = ? WHERE id = ?",
		analyst.Level, analyst.Email, id,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update analyst: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAnalystNotFound
	}

	analyst.ID = id
	return nil
}

// DeleteAnalyst removes an analyst by ID
func (sas *SQLiteAnalystStorage) DeleteAnalyst(id int64) error {
	result, err := sas.sqlite.DB.Exec("DELETE FROM analysts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete analyst: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAnalystNotFound
	}

	return nil
}
