package marker

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"steamwatch/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

// dialect holds the statements that differ between drivers (placeholders).
type dialect struct {
	driver string
	load   string
	save   string
}

var (
	sqliteDialect = dialect{
		driver: "sqlite",
		load:   `SELECT value FROM steamwatch_marker WHERE name = ?`,
		save: `INSERT INTO steamwatch_marker(name, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
	}
	postgresDialect = dialect{
		driver: "postgres",
		load:   `SELECT value FROM steamwatch_marker WHERE name = $1`,
		save: `INSERT INTO steamwatch_marker(name, value, updated_at) VALUES($1,$2,$3)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
	}
)

// sqlStore keeps the marker as one row keyed by Config.Key.
type sqlStore struct {
	db      *sql.DB
	log     logx.Logger
	dialect dialect
	key     string
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("marker.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")

	return newSQLStore(db, sqliteDialect, cfg.Key, log)
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("marker.dsn is required for postgres driver")
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return newSQLStore(db, postgresDialect, cfg.Key, log)
}

func newSQLStore(db *sql.DB, d dialect, key string, log logx.Logger) (Store, error) {
	st := &sqlStore{db: db, log: log, dialect: d, key: key}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("marker migrate (%s): %w", s.dialect.driver, err)
	}
	return nil
}

func (s *sqlStore) LoadMarker(ctx context.Context) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrClosed
	}
	var v string
	err := s.db.QueryRowContext(ctx, s.dialect.load, s.key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("marker load (%s): %w", s.dialect.driver, err)
	}
	return strings.TrimSpace(v), nil
}

func (s *sqlStore) SaveMarker(ctx context.Context, value string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, s.dialect.save, s.key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("marker save (%s): %w", s.dialect.driver, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
