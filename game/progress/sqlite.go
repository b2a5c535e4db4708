package progress

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteBackend keeps every player's progress in one SQLite database
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite migrates the database at path to the latest schema and opens it
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := runMigrations(path); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &SQLiteBackend{db: db}, nil
}

func runMigrations(path string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (b *SQLiteBackend) Open(player string) (Store, error) {
	if err := checkPlayerID(player); err != nil {
		return nil, err
	}
	if _, err := b.db.Exec(`INSERT OR IGNORE INTO players (id) VALUES (?)`, player); err != nil {
		return nil, fmt.Errorf("failed to register player: %w", err)
	}
	return &sqliteStore{db: b.db, player: player}, nil
}

func (b *SQLiteBackend) List() ([]string, error) {
	rows, err := b.db.Query(`SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *SQLiteBackend) Delete(player string) error {
	return withTx(b.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM progress WHERE player_id = ?`, player); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM players WHERE id = ?`, player)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPlayerNotFound
		}
		return nil
	})
}

func (b *SQLiteBackend) Exists(player string) bool {
	var n int
	err := b.db.QueryRow(`SELECT COUNT(1) FROM players WHERE id = ?`, player).Scan(&n)
	return err == nil && n > 0
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// withTx runs fn in a transaction
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type sqliteStore struct {
	db     *sql.DB
	player string
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM progress WHERE player_id = ? AND key = ?`, s.player, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (player_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (player_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.player, key, string(value), time.Now().UTC().Truncate(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
