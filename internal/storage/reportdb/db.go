// Package reportdb persists strategies, backtest reports and their metrics in
// SQLite.
package reportdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Config holds database configuration.
type Config struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the database, creating the file and schema when missing.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	// file: URIs are passed through untouched
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{conn: conn, path: cfg.Path}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func buildConnectionString(cfg Config) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}

	connStr := cfg.Path + sep + "_pragma=foreign_keys(1)"
	connStr += fmt.Sprintf("&_pragma=busy_timeout(%d)", busy.Milliseconds())
	connStr += "&_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"
	return connStr
}

// Migrate applies the schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	return WithTransaction(ctx, db.conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		return addSearchText(ctx, tx)
	})
}

// addSearchText upgrades strategies tables created before search_text existed
// and backfills the folded text.
func addSearchText(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info('strategies')`)
	if err != nil {
		return fmt.Errorf("inspecting strategies: %w", err)
	}
	found := false
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			rows.Close()
			return fmt.Errorf("inspecting strategies: %w", err)
		}
		if col == "search_text" {
			found = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspecting strategies: %w", err)
	}
	if found {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`ALTER TABLE strategies ADD COLUMN search_text TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("adding search_text: %w", err)
	}

	type pending struct {
		id, name    string
		description *string
	}
	var todo []pending
	rows, err = tx.QueryContext(ctx, `SELECT id, name, description FROM strategies`)
	if err != nil {
		return fmt.Errorf("loading strategies: %w", err)
	}
	for rows.Next() {
		var p pending
		var desc sql.NullString
		if err := rows.Scan(&p.id, &p.name, &desc); err != nil {
			rows.Close()
			return fmt.Errorf("scanning strategy: %w", err)
		}
		if desc.Valid {
			p.description = &desc.String
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading strategies: %w", err)
	}

	for _, p := range todo {
		if _, err := tx.ExecContext(ctx, `UPDATE strategies SET search_text = ? WHERE id = ?`,
			searchText(p.name, p.description), p.id); err != nil {
			return fmt.Errorf("backfilling search_text: %w", err)
		}
	}
	return nil
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTransaction runs fn inside a transaction. The transaction is rolled back
// when fn returns an error or panics, and committed otherwise.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("committing transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}
