package store

import (
	"context"
	"fmt"
	"time"

	"driverhub/internal/utils"
	"driverhub/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activityLogTableName = "driverhub.activity_logs"

var activityLogColumns = utils.StructTagValues(types.ActivityLogEntry{})

// ActivityLogRepository is append-only. There are deliberately no update or
// delete methods; entries are immutable once written.
type ActivityLogRepository struct {
	pool *pgxpool.Pool
}

func NewActivityLogRepository(pool *pgxpool.Pool) *ActivityLogRepository {
	return &ActivityLogRepository{pool: pool}
}

func (r *ActivityLogRepository) Append(ctx context.Context, entry *types.ActivityLogEntry) error {
	if entry.ID == "" {
		entry.ID = utils.NanoID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query, args, err := psql().
		Insert(activityLogTableName).
		SetMap(utils.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate append activity query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to append activity entry")
}

// ByApplication returns the newest entries first, bounded by limit.
func (r *ActivityLogRepository) ByApplication(ctx context.Context, applicationID string, limit uint64) ([]*types.ActivityLogEntry, error) {
	query, args, err := psql().
		Select(activityLogColumns...).
		From(activityLogTableName).
		Where(sq.Eq{"application_id": applicationID}).
		OrderBy("timestamp DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate activity query: %w", err)
	}

	entries := make([]*types.ActivityLogEntry, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity entries: %w", err)
	}

	return entries, nil
}

// Recent returns the newest entries across all applications.
func (r *ActivityLogRepository) Recent(ctx context.Context, limit uint64) ([]*types.ActivityLogEntry, error) {
	query, args, err := psql().
		Select(activityLogColumns...).
		From(activityLogTableName).
		OrderBy("timestamp DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate recent activity query: %w", err)
	}

	entries := make([]*types.ActivityLogEntry, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent activity: %w", err)
	}

	return entries, nil
}
