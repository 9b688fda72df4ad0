package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// TimeFormat is the layout for every timestamp column. Timestamps are stored
// as UTC text and compared lexicographically in SQL, so the fraction is
// padded to a fixed width; RFC3339Nano would strip trailing zeros and make a
// whole second sort after a fraction within the same second.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite holds the database connections backing all stores. Reads and writes
// use separate pools so WAL mode's concurrent readers never queue behind the
// single writer: listing, search, and aggregation stay responsive while the
// engine and ticket service commit.
type SQLite struct {
	DB     *sql.DB // write pool, MaxOpenConns=1 (WAL single writer)
	ReadDB *sql.DB // read-only pool
	Path   string
	Logger *zap.SugaredLogger
}

// configureConnection applies the pragmas every pool needs: WAL journaling,
// foreign keys, and a busy timeout so concurrent access waits instead of
// failing with SQLITE_BUSY.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// In-memory databases report "memory" journal mode; only file-backed
	// databases must be in WAL.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (journal_mode=%s)", journalMode)
	}
	return nil
}

// NewSQLite opens the database at dbPath, creating parent directories as
// needed, runs migrations, and returns the configured pools.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	if err := configureConnection(writeDB, dbPath); err != nil {
		writeDB.Close()
		return nil, err
	}

	// In-memory databases are private per connection; the read pool must
	// share the write connection or it would see an empty schema.
	readDB := writeDB
	if dbPath != ":memory:" {
		readDB, err = sql.Open("sqlite", dbPath)
		if err != nil {
			writeDB.Close()
			return nil, fmt.Errorf("failed to open read pool: %w", err)
		}
		readDB.SetMaxOpenConns(8)
		if err := configureConnection(readDB, dbPath); err != nil {
			writeDB.Close()
			readDB.Close()
			return nil, err
		}
	}

	s := &SQLite{DB: writeDB, ReadDB: readDB, Path: dbPath, Logger: logger}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infof("SQLite storage ready at %s", dbPath)
	return s, nil
}

// Close closes both pools.
func (s *SQLite) Close() {
	if s.ReadDB != nil && s.ReadDB != s.DB {
		if err := s.ReadDB.Close(); err != nil {
			s.Logger.Warnf("Failed to close read pool: %v", err)
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.Logger.Warnf("Failed to close write pool: %v", err)
		}
	}
}
