package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BotConfig struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsStore holds operator settings (welcome text, analytics figures).
// It never stores conversation messages.
type SettingsStore interface {
	// GetConfig returns "" without error when the key is not set
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	GetAllConfigs(ctx context.Context) ([]BotConfig, error)
}

// ConfigRepository is the Postgres-backed SettingsStore
type ConfigRepository struct {
	db *pgxpool.Pool
}

func NewConfigRepository(db *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// GetConfig returns a config value by key
func (r *ConfigRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, "SELECT value FROM bot_config WHERE key=$1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil // Not found is not strictly an error
		}
		return "", err
	}
	return value, nil
}

// SetConfig upserts a config value
func (r *ConfigRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bot_config (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, key, value)
	return err
}

// GetAllConfigs returns all configs ordered by key
func (r *ConfigRepository) GetAllConfigs(ctx context.Context) ([]BotConfig, error) {
	rows, err := r.db.Query(ctx, "SELECT key, value, updated_at FROM bot_config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []BotConfig{}
	for rows.Next() {
		var c BotConfig
		if err := rows.Scan(&c.Key, &c.Value, &c.UpdatedAt); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// MemoryConfigRepository keeps settings for the lifetime of the process
type MemoryConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]BotConfig
	now     func() time.Time
}

func NewMemoryConfigRepository() *MemoryConfigRepository {
	return &MemoryConfigRepository{
		configs: make(map[string]BotConfig),
		now:     time.Now,
	}
}

func (r *MemoryConfigRepository) GetConfig(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[key].Value, nil
}

func (r *MemoryConfigRepository) SetConfig(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[key] = BotConfig{Key: key, Value: value, UpdatedAt: r.now()}
	return nil
}

func (r *MemoryConfigRepository) GetAllConfigs(_ context.Context) ([]BotConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]BotConfig, 0, len(r.configs))
	for _, c := range r.configs {
		configs = append(configs, c)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Key < configs[j].Key })
	return configs, nil
}
