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

const accessColumns = `id, name, description, module_name, action_type, created_at, updated_at`

// AccessRepo provides PostgreSQL backed persistence for access rows.
type AccessRepo struct {
	db db.DBTX
}

// NewAccessRepo constructs an access repository on a pool or transaction.
func NewAccessRepo(conn db.DBTX) *AccessRepo {
	return &AccessRepo{db: conn}
}

// Insert creates the row and returns it with the generated id and timestamps.
func (r *AccessRepo) Insert(ctx context.Context, access Access) (Access, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO access (name, description, module_name, action_type)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accessColumns,
		access.Name, nullText(access.Description), nullText(access.ModuleName), nullText(access.ActionType))
	created, err := scanAccess(row)
	if err != nil {
		return Access{}, accessWriteError(access.Name, err)
	}
	return created, nil
}

// FindByID fetches an access by id.
func (r *AccessRepo) FindByID(ctx context.Context, id int64) (Access, bool, error) {
	return r.findOne(ctx, `SELECT `+accessColumns+` FROM access WHERE id = $1`, id)
}

// FindByName fetches an access by its unique name.
func (r *AccessRepo) FindByName(ctx context.Context, name string) (Access, bool, error) {
	return r.findOne(ctx, `SELECT `+accessColumns+` FROM access WHERE name = $1`, name)
}

// Update writes every mutable column and refreshes updated_at.
func (r *AccessRepo) Update(ctx context.Context, access Access) (Access, error) {
	row := r.db.QueryRow(ctx, `UPDATE access
		SET name = $2, description = $3, module_name = $4, action_type = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accessColumns,
		access.ID, access.Name, nullText(access.Description), nullText(access.ModuleName), nullText(access.ActionType))
	updated, err := scanAccess(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Access{}, fmt.Errorf("%w: access %d", shared.ErrNotFound, access.ID)
		}
		return Access{}, accessWriteError(access.Name, err)
	}
	return updated, nil
}

// Delete removes the access; role_access rows cascade.
func (r *AccessRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM access WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: access %d", shared.ErrNotFound, id)
	}
	return nil
}

// List returns every access ordered by id.
func (r *AccessRepo) List(ctx context.Context) ([]Access, error) {
	return r.list(ctx, `SELECT `+accessColumns+` FROM access ORDER BY id`)
}

// ListByModule returns the accesses of one module.
func (r *AccessRepo) ListByModule(ctx context.Context, module string) ([]Access, error) {
	return r.list(ctx, `SELECT `+accessColumns+` FROM access WHERE module_name = $1 ORDER BY id`, module)
}

// ListByActionType returns the accesses with one action type.
func (r *AccessRepo) ListByActionType(ctx context.Context, actionType string) ([]Access, error) {
	return r.list(ctx, `SELECT `+accessColumns+` FROM access WHERE action_type = $1 ORDER BY id`, actionType)
}

// ListByRole returns the accesses linked to a role through role_access.
func (r *AccessRepo) ListByRole(ctx context.Context, roleID int64) ([]Access, error) {
	return r.list(ctx, `SELECT a.id, a.name, a.description, a.module_name, a.action_type, a.created_at, a.updated_at
		FROM access a
		JOIN role_access ra ON ra.access_id = a.id
		WHERE ra.role_id = $1
		ORDER BY a.id`, roleID)
}

// ExistsByName reports whether an access already uses name.
func (r *AccessRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM access WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (r *AccessRepo) findOne(ctx context.Context, query string, arg any) (Access, bool, error) {
	access, err := scanAccess(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Access{}, false, nil
		}
		return Access{}, false, err
	}
	return access, true, nil
}

func (r *AccessRepo) list(ctx context.Context, query string, args ...any) ([]Access, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	accesses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Access, error) {
		return scanAccess(row)
	})
	if err != nil {
		return nil, err
	}
	if accesses == nil {
		accesses = []Access{}
	}
	return accesses, nil
}

func scanAccess(row rowScanner) (Access, error) {
	var (
		a                              Access
		description, module, actionTyp pgtype.Text
	)
	if err := row.Scan(&a.ID, &a.Name, &description, &module, &actionTyp, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Access{}, err
	}
	a.Description = description.String
	a.ModuleName = module.String
	a.ActionType = actionTyp.String
	return a, nil
}

func accessWriteError(name string, err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: access %q already exists", shared.ErrConflict, name)
	}
	return err
}

var _ AccessRepository = (*AccessRepo)(nil)
