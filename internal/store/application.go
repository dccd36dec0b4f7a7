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

const applicationTableName = "driverhub.applications"

var applicationColumns = utils.StructTagValues(types.Application{})

// partialUpsertClause merges a draft save into an existing row. created_at is
// never overwritten, documents only gain keys, and the WHERE arm refuses to
// touch a row that has been through final submission.
const partialUpsertClause = `ON CONFLICT (id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	email = EXCLUDED.email,
	phone = EXCLUDED.phone,
	area = EXCLUDED.area,
	is_licensed_driver = EXCLUDED.is_licensed_driver,
	badge_number = EXCLUDED.badge_number,
	badge_expiry = EXCLUDED.badge_expiry,
	issuing_council = EXCLUDED.issuing_council,
	driving_license_number = EXCLUDED.driving_license_number,
	license_expiry = EXCLUDED.license_expiry,
	dbs_check_number = EXCLUDED.dbs_check_number,
	has_own_vehicle = EXCLUDED.has_own_vehicle,
	vehicle_make = EXCLUDED.vehicle_make,
	vehicle_model = EXCLUDED.vehicle_model,
	vehicle_reg = EXCLUDED.vehicle_reg,
	insurance_expiry = EXCLUDED.insurance_expiry,
	current_step = EXCLUDED.current_step,
	documents = COALESCE(applications.documents, '{}'::jsonb) || COALESCE(EXCLUDED.documents, '{}'::jsonb),
	unlicensed_progress = COALESCE(EXCLUDED.unlicensed_progress, applications.unlicensed_progress),
	updated_at = EXCLUDED.updated_at
WHERE applications.is_partial`

// submitUpsertClause finalizes the record. Documents stay additive and
// created_at keeps its first-write value; status is only seeded when absent
// so a resubmission never claws back staff-side progression.
const submitUpsertClause = `ON CONFLICT (id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	email = EXCLUDED.email,
	phone = EXCLUDED.phone,
	area = EXCLUDED.area,
	is_licensed_driver = EXCLUDED.is_licensed_driver,
	badge_number = EXCLUDED.badge_number,
	badge_expiry = EXCLUDED.badge_expiry,
	issuing_council = EXCLUDED.issuing_council,
	driving_license_number = EXCLUDED.driving_license_number,
	license_expiry = EXCLUDED.license_expiry,
	dbs_check_number = EXCLUDED.dbs_check_number,
	has_own_vehicle = EXCLUDED.has_own_vehicle,
	vehicle_make = EXCLUDED.vehicle_make,
	vehicle_model = EXCLUDED.vehicle_model,
	vehicle_reg = EXCLUDED.vehicle_reg,
	insurance_expiry = EXCLUDED.insurance_expiry,
	current_step = EXCLUDED.current_step,
	documents = COALESCE(applications.documents, '{}'::jsonb) || COALESCE(EXCLUDED.documents, '{}'::jsonb),
	unlicensed_progress = COALESCE(EXCLUDED.unlicensed_progress, applications.unlicensed_progress),
	status = COALESCE(applications.status, EXCLUDED.status),
	is_partial = false,
	created_at = COALESCE(applications.created_at, EXCLUDED.created_at),
	updated_at = EXCLUDED.updated_at`

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

func (r *ApplicationRepository) Application(ctx context.Context, id string) (*types.Application, error) {
	query, args, err := psql().
		Select(applicationColumns...).
		From(applicationTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate application query: %w", err)
	}

	var app types.Application
	err = pgxscan.Get(ctx, r.pool, &app, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to fetch application: %w", err)
	}

	return &app, nil
}

// All returns every stored application. Used by the batch reconciler only.
func (r *ApplicationRepository) All(ctx context.Context) ([]*types.Application, error) {
	query, args, err := psql().
		Select(applicationColumns...).
		From(applicationTableName).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate list applications query: %w", err)
	}

	var apps []*types.Application
	err = pgxscan.Select(ctx, r.pool, &apps, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	return apps, nil
}

// SavePartial upserts an auto-saved draft. Returns ErrAlreadySubmitted when
// the row exists but has left the draft state; isPartial is one-way.
func (r *ApplicationRepository) SavePartial(ctx context.Context, app *types.Application) error {
	now := time.Now()
	if app.CreatedAt == nil {
		app.CreatedAt = &now
	}
	app.UpdatedAt = now
	app.IsPartial = true

	query, args, err := psql().
		Insert(applicationTableName).
		SetMap(utils.StructToMap(app)).
		Suffix(partialUpsertClause).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate partial save query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save partial application: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrAlreadySubmitted
	}

	return nil
}

// Submit writes the final record. Safe to retry: created_at and any
// staff-set status survive, documents merge additively.
func (r *ApplicationRepository) Submit(ctx context.Context, app *types.Application) error {
	now := time.Now()
	if app.CreatedAt == nil {
		app.CreatedAt = &now
	}
	app.UpdatedAt = now
	app.IsPartial = false

	query, args, err := psql().
		Insert(applicationTableName).
		SetMap(utils.StructToMap(app)).
		Suffix(submitUpsertClause).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate submit query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to submit application: %w", err)
	}

	return nil
}

// UpdateProgress replaces the unlicensed progress blob for one applicant.
func (r *ApplicationRepository) UpdateProgress(ctx context.Context, id string, progress *types.UnlicensedProgress) error {
	query, args, err := psql().
		Update(applicationTableName).
		Set("unlicensed_progress", progress).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update progress query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update unlicensed progress: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrApplicationNotFound
	}

	return nil
}

// SetDocuments merges new document slots into the stored map without
// dropping existing keys.
func (r *ApplicationRepository) SetDocuments(ctx context.Context, id string, docs types.Documents) error {
	query, args, err := psql().
		Update(applicationTableName).
		Set("documents", sq.Expr("COALESCE(documents, '{}'::jsonb) || ?", docs)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate set documents query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to merge documents: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrApplicationNotFound
	}

	return nil
}

// MergePatch fills in migration-produced fields. Every column is guarded by
// COALESCE so a concurrent applicant write is never clobbered; the patch
// only lands where the value is still absent.
func (r *ApplicationRepository) MergePatch(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	update := psql().Update(applicationTableName)

	for field, value := range fields {
		column, ok := migrationColumns[field]
		if !ok {
			return fmt.Errorf("migration produced unknown field %q", field)
		}
		update = update.Set(column, sq.Expr(fmt.Sprintf("COALESCE(%s, ?)", column), migrationValue(value)))
	}

	query, args, err := update.
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate merge patch query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to apply migration patch")
}

var migrationColumns = map[string]string{
	"isLicensedDriver":   "is_licensed_driver",
	"unlicensedProgress": "unlicensed_progress",
	"documents":          "documents",
	"hasOwnVehicle":      "has_own_vehicle",
	"createdAt":          "created_at",
}

func migrationValue(value any) any {
	// Rules hand back value types for the jsonb fields; the drivers want
	// the Valuer implementations.
	switch v := value.(type) {
	case types.UnlicensedProgress:
		return &v
	default:
		return value
	}
}
