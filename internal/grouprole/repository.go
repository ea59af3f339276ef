package grouprole

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository reads group role definitions and memberships from PostgreSQL.
// Groups, roles and memberships are owned by the host; nothing here writes them.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository backed by the pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const roleColumns = `id, label, weight, audience`

// ListRoles returns every role definition.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM group_roles ORDER BY group_type, weight, id`)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// RolesForGroupType returns the role definitions of a single group type.
func (r *Repository) RolesForGroupType(ctx context.Context, groupType string) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM group_roles WHERE group_type = $1 ORDER BY weight, id`, groupType)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// GetGroup loads a group by ID.
func (r *Repository) GetGroup(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := r.db.QueryRow(ctx, `SELECT id, type, label FROM groups WHERE id = $1`, id).Scan(&g.ID, &g.Type, &g.Label)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrNotFound
		}
		return Group{}, err
	}
	return g, nil
}

// Membership returns whether the user belongs to the group and, if so, the
// roles assigned to the membership.
func (r *Repository) Membership(ctx context.Context, groupID, userID int64) (bool, []RoleID, error) {
	var member bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM group_memberships WHERE group_id = $1 AND user_id = $2)`, groupID, userID).Scan(&member)
	if err != nil {
		return false, nil, err
	}
	if !member {
		return false, nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT role_id FROM group_membership_roles WHERE group_id = $1 AND user_id = $2 ORDER BY role_id`, groupID, userID)
	if err != nil {
		return false, nil, err
	}
	defer rows.Close()
	var ids []RoleID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return false, nil, err
		}
		ids = append(ids, ParseRoleID(raw))
	}
	if err := rows.Err(); err != nil {
		return false, nil, err
	}
	return true, ids, nil
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var (
			raw      string
			role     Role
			audience string
		)
		if err := rows.Scan(&raw, &role.Label, &role.Weight, &audience); err != nil {
			return nil, err
		}
		role.ID = ParseRoleID(raw)
		role.Audience = Audience(audience)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
