package condition

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository persists condition configurations in PostgreSQL.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const recordColumns = `id, plugin_id, label, group_type, group_roles, negate, created_at, updated_at`

// List returns all condition configurations ordered by label.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM condition_configs ORDER BY label, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches a configuration by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM condition_configs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Create inserts a configuration.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO condition_configs (id, plugin_id, label, group_type, group_roles, negate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+recordColumns,
		rec.ID, rec.PluginID, rec.Label, rec.GroupType, rec.Config.GroupRoles, rec.Config.Negate)
	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicate
		}
		return Record{}, err
	}
	return created, nil
}

// Update replaces label, group type and configuration of an existing record.
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE condition_configs
		SET label = $2, group_type = $3, group_roles = $4, negate = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns,
		rec.ID, rec.Label, rec.GroupType, rec.Config.GroupRoles, rec.Config.Negate)
	updated, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return updated, nil
}

// Delete removes a configuration. Returns ErrNotFound if nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM condition_configs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PluginID, &rec.Label, &rec.GroupType, &rec.Config.GroupRoles, &rec.Config.Negate, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	if rec.Config.GroupRoles == nil {
		rec.Config.GroupRoles = []string{}
	}
	return rec, nil
}
