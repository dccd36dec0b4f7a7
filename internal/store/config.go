package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"driverhub/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const configTableName = "driverhub.configs"

// DefaultConfigKey is the single operator-editable document driving
// branding and the status pipeline.
const DefaultConfigKey = "defaultConfig"

type ConfigRepository struct {
	pool *pgxpool.Pool
}

func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// PortalConfig reads one config document into an immutable snapshot. The
// caller keeps the snapshot for the session; refreshing means re-reading.
func (r *ConfigRepository) PortalConfig(ctx context.Context, key string) (*types.PortalConfig, error) {
	query, args, err := psql().
		Select("body").
		From(configTableName).
		Where(sq.Eq{"key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate config query: %w", err)
	}

	var body []byte
	err = pgxscan.Get(ctx, r.pool, &body, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to fetch config: %w", err)
	}

	var config types.PortalConfig
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config document: %w", err)
	}

	return &config, nil
}

// SavePortalConfig writes the whole document in one set.
func (r *ConfigRepository) SavePortalConfig(ctx context.Context, key string, config *types.PortalConfig) error {
	body, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config document: %w", err)
	}

	query, args, err := psql().
		Insert(configTableName).
		Columns("key", "body", "updated_at").
		Values(key, body, time.Now()).
		Suffix("ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate save config query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
