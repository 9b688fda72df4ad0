package storage

import "fmt"

// Migrate creates all tables and indexes. The schema is idempotent so it runs
// unconditionally on every startup.
func (s *SQLite) Migrate() error {
	schema := `
	-- Raw security log events
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		agent TEXT NOT NULL,
		description TEXT,
		rule_id TEXT,
		location TEXT,
		full_log TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_alert_id ON logs(alert_id);
	CREATE INDEX IF NOT EXISTS idx_logs_agent ON logs(agent);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC);

	-- Correlation rules
	CREATE TABLE IF NOT EXISTS correlation_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_name TEXT NOT NULL,
		keyword TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		interval INTEGER NOT NULL, -- duration in nanoseconds
		severity TEXT NOT NULL,
		description TEXT,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_correlation_rules_enabled ON correlation_rules(enabled);
	CREATE INDEX IF NOT EXISTS idx_correlation_rules_severity ON correlation_rules(severity);

	-- Alerts produced by the correlation engine
	CREATE TABLE IF NOT EXISTS correlated_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		correlation_type TEXT NOT NULL,
		related_alerts TEXT NOT NULL, -- JSON array of log alert IDs
		severity TEXT NOT NULL,
		agent_id TEXT,
		correlation_notes TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_correlated_alerts_severity ON correlated_alerts(severity);
	CREATE INDEX IF NOT EXISTS idx_correlated_alerts_timestamp ON correlated_alerts(timestamp DESC);

	-- Incident tickets
	CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'new',
		severity TEXT NOT NULL,
		assigned_to TEXT,
		client_email TEXT,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
	CREATE INDEX IF NOT EXISTS idx_tickets_severity ON tickets(severity);
	CREATE INDEX IF NOT EXISTS idx_tickets_assigned_to ON tickets(assigned_to);
	CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at DESC);

	-- Per-field audit trail of ticket changes
	CREATE TABLE IF NOT EXISTS ticket_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL,
		field_changed TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		changed_by TEXT,
		changed_at DATETIME NOT NULL,
		FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket_id ON ticket_history(ticket_id);

	-- SOC analyst directory
	CREATE TABLE IF NOT EXISTS analysts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		level TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysts_level ON analysts(level);
	`

	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}
