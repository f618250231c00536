package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/conversation"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps one row per thread.
type SQLStore struct {
	db      *sql.DB
	dialect string
	table   string

	loadSQL   string
	saveSQL   string
	deleteSQL string
	listSQL   string
}

// NewSQLStore wraps an open database. The checkpoint table is created
// when missing. dialect is sqlite, postgres or mysql.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect, table string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &SQLStore{db: db, dialect: dialect, table: table}
	s.prepareQueries()

	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewSQLStoreFromConfig opens the configured database and wraps it.
func NewSQLStoreFromConfig(ctx context.Context, cfg *config.DatabaseConfig) (*SQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("SQL configuration is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database %q: %w", cfg.Driver, cfg.Database, err)
	}

	store, err := NewSQLStore(ctx, db, cfg.Dialect(), cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("Opened SQL checkpoint store", "driver", cfg.Driver, "database", cfg.Database, "table", cfg.Table)
	return store, nil
}

func (s *SQLStore) prepareQueries() {
	t := s.table
	switch s.dialect {
	case "postgres":
		s.loadSQL = `SELECT state FROM ` + t + ` WHERE thread_id = $1`
		s.saveSQL = `INSERT INTO ` + t + ` (thread_id, state, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (thread_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
		s.deleteSQL = `DELETE FROM ` + t + ` WHERE thread_id = $1`
	case "mysql":
		s.loadSQL = `SELECT state FROM ` + t + ` WHERE thread_id = ?`
		s.saveSQL = `INSERT INTO ` + t + ` (thread_id, state, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE state = VALUES(state), updated_at = VALUES(updated_at)`
		s.deleteSQL = `DELETE FROM ` + t + ` WHERE thread_id = ?`
	default:
		s.loadSQL = `SELECT state FROM ` + t + ` WHERE thread_id = ?`
		s.saveSQL = `INSERT INTO ` + t + ` (thread_id, state, updated_at) VALUES (?, ?, ?)
ON CONFLICT (thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
		s.deleteSQL = `DELETE FROM ` + t + ` WHERE thread_id = ?`
	}
	s.listSQL = `SELECT thread_id FROM ` + t + ` ORDER BY thread_id`
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	stateType := "TEXT"
	if s.dialect == "mysql" {
		stateType = "LONGTEXT"
	}

	ddl := `
CREATE TABLE IF NOT EXISTS ` + s.table + ` (
    thread_id VARCHAR(255) NOT NULL PRIMARY KEY,
    state ` + stateType + ` NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, threadID string) (*conversation.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.loadSQL, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return conversation.Decode([]byte(data))
}

func (s *SQLStore) Save(ctx context.Context, state *conversation.State) error {
	if state == nil {
		return fmt.Errorf("cannot save nil state")
	}
	if err := validThreadID(state.ThreadID()); err != nil {
		return err
	}
	data, err := conversation.Encode(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, s.saveSQL, state.ThreadID(), string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteSQL, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.listSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
