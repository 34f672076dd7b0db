package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteConfigRepository is a SettingsStore in a local SQLite file
type SQLiteConfigRepository struct {
	db *sql.DB
}

// NewSQLiteConfigRepository opens or creates the database and its bot_config table
func NewSQLiteConfigRepository(dbPath string) (*SQLiteConfigRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	r := &SQLiteConfigRepository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteConfigRepository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bot_config (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

func (r *SQLiteConfigRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteConfigRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bot_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteConfigRepository) GetAllConfigs(ctx context.Context) ([]BotConfig, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value, updated_at FROM bot_config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []BotConfig{}
	for rows.Next() {
		var (
			c       BotConfig
			updated string
		)
		if err := rows.Scan(&c.Key, &c.Value, &updated); err != nil {
			return nil, err
		}
		c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (r *SQLiteConfigRepository) Close() error {
	return r.db.Close()
}
