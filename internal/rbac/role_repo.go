package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-iam/internal/platform/db"
	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

const roleColumns = `id, name, description, created_at, updated_at`

// RoleRepo provides PostgreSQL backed persistence for roles.
type RoleRepo struct {
	db db.DBTX
}

// NewRoleRepo constructs a role repository on a pool or transaction.
func NewRoleRepo(conn db.DBTX) *RoleRepo {
	return &RoleRepo{db: conn}
}

// Insert creates a role.
func (r *RoleRepo) Insert(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING `+roleColumns,
		role.Name, nullText(role.Description))
	created, err := scanRole(row)
	if err != nil {
		return Role{}, roleWriteError(role.Name, err)
	}
	return created, nil
}

// FindByID fetches a role summary by id; accesses are not loaded.
func (r *RoleRepo) FindByID(ctx context.Context, id int64) (Role, bool, error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
}

// FindByName fetches a role by unique name.
func (r *RoleRepo) FindByName(ctx context.Context, name string) (Role, bool, error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
}

// Update writes name and description and refreshes updated_at.
func (r *RoleRepo) Update(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, nullText(role.Description))
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, role.ID)
		}
		return Role{}, roleWriteError(role.Name, err)
	}
	return updated, nil
}

// Delete removes a role. Users referencing it make the store refuse the delete.
func (r *RoleRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: role %d in use", shared.ErrConflict, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return nil
}

// List returns all roles ordered by id.
func (r *RoleRepo) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	roles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Role, error) {
		return scanRole(row)
	})
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// ExistsByName reports whether a role already uses name.
func (r *RoleRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// CountUsers returns how many users reference the role.
func (r *RoleRepo) CountUsers(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

func (r *RoleRepo) findOne(ctx context.Context, query string, arg any) (Role, bool, error) {
	role, err := scanRole(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, false, nil
		}
		return Role{}, false, err
	}
	return role, true, nil
}

func scanRole(row rowScanner) (Role, error) {
	var (
		role        Role
		description pgtype.Text
	)
	if err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.Description = description.String
	return role, nil
}

func roleWriteError(name string, err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: role %q already exists", shared.ErrConflict, name)
	}
	return err
}

var _ RoleRepository = (*RoleRepo)(nil)
