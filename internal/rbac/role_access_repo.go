package rbac

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-iam/internal/platform/db"
	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// RoleAccessRepo maintains role_access links.
type RoleAccessRepo struct {
	db db.DBTX
}

// NewRoleAccessRepo constructs a join-table repository on a pool or transaction.
func NewRoleAccessRepo(conn db.DBTX) *RoleAccessRepo {
	return &RoleAccessRepo{db: conn}
}

// Link grants accessID to roleID.
func (r *RoleAccessRepo) Link(ctx context.Context, roleID, accessID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO role_access (role_id, access_id) VALUES ($1, $2)`, roleID, accessID)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: access %d already linked to role %d", shared.ErrConflict, accessID, roleID)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: role %d or access %d", shared.ErrNotFound, roleID, accessID)
	default:
		return err
	}
}

// Unlink revokes accessID from roleID.
func (r *RoleAccessRepo) Unlink(ctx context.Context, roleID, accessID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM role_access WHERE role_id = $1 AND access_id = $2`, roleID, accessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: access %d not linked to role %d", shared.ErrConflict, accessID, roleID)
	}
	return nil
}

// Exists reports whether the link is present.
func (r *RoleAccessRepo) Exists(ctx context.Context, roleID, accessID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_access WHERE role_id = $1 AND access_id = $2)`, roleID, accessID).Scan(&exists)
	return exists, err
}

var _ RoleAccessRepository = (*RoleAccessRepo)(nil)
