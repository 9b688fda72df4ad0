package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aegis/core"

	"go.uber.org/zap"
)

// SQLiteRuleStorage handles correlation rule persistence in SQLite
type SQLiteRuleStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteRuleStorage creates a new SQLite correlation rule storage handler
func NewSQLiteRuleStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteRuleStorage {
	return &SQLiteRuleStorage{
		sqlite: sqlite,
		logger: logger,
	}
}

const ruleColumns = "id, rule_name, keyword, threshold, interval, severity, description, enabled, created_at, updated_at"

func scanRule(scanner interface{ Scan(...interface{}) error }) (*core.CorrelationRule, error) {
	var rule core.CorrelationRule
	var intervalNs int64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rule.ID,
		&rule.RuleName,
		&rule.Keyword,
		&rule.Threshold,
		&intervalNs,
		&rule.Severity,
		&rule.Description,
		&rule.Enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Interval = time.Duration(intervalNs)
	rule.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rule.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rule, nil
}

// GetRules retrieves correlation rules with pagination, newest first
func (srs *SQLiteRuleStorage) GetRules(limit, offset int) ([]core.CorrelationRule, error) {
	if limit <= 0 {
		limit = core.DefaultSearchLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM correlation_rules
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, ruleColumns)

	rows, err := srs.sqlite.ReadDB.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlation rules: %w", err)
	}
	defer rows.Close()

	// Initialize with make() to ensure non-nil slice for JSON serialization.
	rules := make([]core.CorrelationRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correlation rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correlation rules: %w", err)
	}

	return rules, nil
}

// GetEnabledRules retrieves all enabled correlation rules for the engine.
func (srs *SQLiteRuleStorage) GetEnabledRules() ([]core.CorrelationRule, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM correlation_rules
		WHERE enabled = 1
		ORDER BY id
	`, ruleColumns)

	rows, err := srs.sqlite.ReadDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled correlation rules: %w", err)
	}
	defer rows.Close()

	rules := make([]core.CorrelationRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correlation rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correlation rules: %w", err)
	}

	return rules, nil
}

// GetRule retrieves a single correlation rule by ID
func (srs *SQLiteRuleStorage) GetRule(id int64) (*core.CorrelationRule, error) {
	query := fmt.Sprintf("SELECT %s FROM correlation_rules WHERE id = ?", ruleColumns)

	rule, err := scanRule(srs.sqlite.ReadDB.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query correlation rule: %w", err)
	}

	return rule, nil
}

// CreateRule inserts a correlation rule and backfills its generated ID.
func (srs *SQLiteRuleStorage) CreateRule(rule *core.CorrelationRule) error {
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO correlation_rules (rule_name, keyword, threshold, interval, severity, description, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := srs.sqlite.DB.Exec(query,
		rule.RuleName,
		rule.Keyword,
		rule.Threshold,
		int64(rule.Interval),
		rule.Severity,
		rule.Description,
		rule.Enabled,
		now.Format(TimeFormat),
		now.Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert correlation rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get correlation rule id: %w", err)
	}
	rule.ID = id

	return nil
}

// UpdateRule replaces a correlation rule's mutable fields.
func (srs *SQLiteRuleStorage) UpdateRule(id int64, rule *core.CorrelationRule) error {
	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE correlation_rules
		SET rule_name = ?, keyword = ?, threshold = ?, interval = ?, severity = ?, description = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := srs.sqlite.DB.Exec(query,
		rule.RuleName,
		rule.Keyword,
		rule.Threshold,
		int64(rule.Interval),
		rule.Severity,
		rule.Description,
		rule.Enabled,
		rule.UpdatedAt.UTC().Format(TimeFormat),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update correlation rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}

	rule.ID = id
	return nil
}

// DeleteRule removes a correlation rule by ID
func (srs *SQLiteRuleStorage) DeleteRule(id int64) error {
	result, err := srs.sqlite.DB.Exec("DELETE FROM correlation_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete correlation rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}

	return nil
}
