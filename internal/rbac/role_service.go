package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// RoleService manages roles and their access sets.
type RoleService struct {
	base
}

// NewRoleService builds a RoleService.
func NewRoleService(deps Deps) *RoleService {
	return &RoleService{base: newBase("role", deps)}
}

// CreateRole inserts a role with an unused name.
func (s *RoleService) CreateRole(ctx context.Context, req CreateRoleRequest) (Role, error) {
	req.Name = normalizeName(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateInput(req); err != nil {
		return Role{}, err
	}

	var created Role
	err := s.run(ctx, "create", func(ctx context.Context, tx Tx) error {
		exists, err := tx.Roles().ExistsByName(ctx, req.Name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: role %q already exists", shared.ErrConflict, req.Name)
		}
		created, err = tx.Roles().Insert(ctx, Role{Name: req.Name, Description: req.Description})
		return err
	})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, "ROLE_CREATE", "role", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// GetRole returns the role summary without its accesses.
func (s *RoleService) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := s.run(ctx, "get", func(ctx context.Context, tx Tx) error {
		var err error
		role, err = mustRole(ctx, tx, id)
		return err
	})
	return role, err
}

// GetRoleWithAccesses returns the role together with its access set.
func (s *RoleService) GetRoleWithAccesses(ctx context.Context, id int64) (RoleWithAccesses, error) {
	return s.withAccesses(ctx, "get_with_accesses", id)
}

// GetRoleByName returns the role named name.
func (s *RoleService) GetRoleByName(ctx context.Context, name string) (Role, error) {
	name = normalizeName(name)
	var role Role
	err := s.run(ctx, "get_by_name", func(ctx context.Context, tx Tx) error {
		found, ok, err := tx.Roles().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: role %q", shared.ErrNotFound, name)
		}
		role = found
		return nil
	})
	return role, err
}

// UpdateRole applies the provided fields; a changed name must be unused.
func (s *RoleService) UpdateRole(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error) {
	req.Name = normalizeOptional(req.Name)
	req.Description = trimOptional(req.Description)
	if req.Name != nil && *req.Name == "" {
		return Role{}, requiredField("name")
	}
	if err := validateInput(req); err != nil {
		return Role{}, err
	}

	var updated Role
	err := s.run(ctx, "update", func(ctx context.Context, tx Tx) error {
		role, err := mustRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Name != nil && *req.Name != role.Name {
			exists, err := tx.Roles().ExistsByName(ctx, *req.Name)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: role %q already exists", shared.ErrConflict, *req.Name)
			}
			role.Name = *req.Name
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		updated, err = tx.Roles().Update(ctx, role)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, "ROLE_UPDATE", "role", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

// DeleteRole removes a role that no user references.
func (s *RoleService) DeleteRole(ctx context.Context, id int64) error {
	var name string
	err := s.run(ctx, "delete", func(ctx context.Context, tx Tx) error {
		role, err := mustRole(ctx, tx, id)
		if err != nil {
			return err
		}
		count, err := tx.Roles().CountUsers(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: role %q in use by %d user(s)", shared.ErrConflict, role.Name, count)
		}
		name = role.Name
		return tx.Roles().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "ROLE_DELETE", "role", id, map[string]any{"name": name})
	return nil
}

// ListRoles returns every role.
func (s *RoleService) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := s.run(ctx, "list", func(ctx context.Context, tx Tx) error {
		var err error
		roles, err = tx.Roles().List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// RoleNameExists reports whether name is already used.
func (s *RoleService) RoleNameExists(ctx context.Context, name string) (bool, error) {
	name = normalizeName(name)
	var exists bool
	err := s.run(ctx, "exists_by_name", func(ctx context.Context, tx Tx) error {
		var err error
		exists, err = tx.Roles().ExistsByName(ctx, name)
		return err
	})
	return exists, err
}

// AddAccessToRole links an access to a role. Adding an access the role
// already holds is a conflict.
func (s *RoleService) AddAccessToRole(ctx context.Context, roleID, accessID int64) (RoleWithAccesses, error) {
	var detail RoleWithAccesses
	var accessName string
	err := s.run(ctx, "add_access", func(ctx context.Context, tx Tx) error {
		if _, err := mustRole(ctx, tx, roleID); err != nil {
			return err
		}
		access, err := mustAccess(ctx, tx, accessID)
		if err != nil {
			return err
		}
		linked, err := tx.RoleAccesses().Exists(ctx, roleID, accessID)
		if err != nil {
			return err
		}
		if linked {
			return fmt.Errorf("%w: access %q already granted to role %d", shared.ErrConflict, access.Name, roleID)
		}
		if err := tx.RoleAccesses().Link(ctx, roleID, accessID); err != nil {
			return err
		}
		accessName = access.Name
		detail, err = loadRoleWithAccesses(ctx, tx, roleID)
		return err
	})
	if err != nil {
		return RoleWithAccesses{}, err
	}
	s.recordAudit(ctx, "ROLE_ACCESS_GRANT", "role", roleID, map[string]any{"access_id": accessID, "access": accessName})
	return detail, nil
}

// RemoveAccessFromRole unlinks an access the role currently holds.
func (s *RoleService) RemoveAccessFromRole(ctx context.Context, roleID, accessID int64) (RoleWithAccesses, error) {
	var detail RoleWithAccesses
	var accessName string
	err := s.run(ctx, "remove_access", func(ctx context.Context, tx Tx) error {
		if _, err := mustRole(ctx, tx, roleID); err != nil {
			return err
		}
		access, err := mustAccess(ctx, tx, accessID)
		if err != nil {
			return err
		}
		linked, err := tx.RoleAccesses().Exists(ctx, roleID, accessID)
		if err != nil {
			return err
		}
		if !linked {
			return fmt.Errorf("%w: access %q not granted to role %d", shared.ErrConflict, access.Name, roleID)
		}
		if err := tx.RoleAccesses().Unlink(ctx, roleID, accessID); err != nil {
			return err
		}
		accessName = access.Name
		detail, err = loadRoleWithAccesses(ctx, tx, roleID)
		return err
	})
	if err != nil {
		return RoleWithAccesses{}, err
	}
	s.recordAudit(ctx, "ROLE_ACCESS_REVOKE", "role", roleID, map[string]any{"access_id": accessID, "access": accessName})
	return detail, nil
}

// AddMultipleAccessToRole links every listed access, skipping those already
// held. The first unknown access aborts the call and nothing is linked.
func (s *RoleService) AddMultipleAccessToRole(ctx context.Context, roleID int64, accessIDs []int64) (RoleWithAccesses, error) {
	var detail RoleWithAccesses
	var added []int64
	err := s.run(ctx, "add_accesses", func(ctx context.Context, tx Tx) error {
		if _, err := mustRole(ctx, tx, roleID); err != nil {
			return err
		}
		added = added[:0]
		seen := make(map[int64]struct{}, len(accessIDs))
		for _, accessID := range accessIDs {
			if _, err := mustAccess(ctx, tx, accessID); err != nil {
				return err
			}
			if _, dup := seen[accessID]; dup {
				continue
			}
			seen[accessID] = struct{}{}
			linked, err := tx.RoleAccesses().Exists(ctx, roleID, accessID)
			if err != nil {
				return err
			}
			if linked {
				continue
			}
			if err := tx.RoleAccesses().Link(ctx, roleID, accessID); err != nil {
				return err
			}
			added = append(added, accessID)
		}
		var err error
		detail, err = loadRoleWithAccesses(ctx, tx, roleID)
		return err
	})
	if err != nil {
		return RoleWithAccesses{}, err
	}
	if len(added) > 0 {
		s.recordAudit(ctx, "ROLE_ACCESS_GRANT", "role", roleID, map[string]any{"access_ids": added})
	}
	return detail, nil
}

// ListRoleAccesses returns the accesses of an existing role.
func (s *RoleService) ListRoleAccesses(ctx context.Context, roleID int64) ([]Access, error) {
	detail, err := s.withAccesses(ctx, "list_accesses", roleID)
	if err != nil {
		return nil, err
	}
	return detail.Accesses, nil
}

// RoleHasAccess reports whether the role holds accessID. An unknown access
// is simply not held; an unknown role is NotFound.
func (s *RoleService) RoleHasAccess(ctx context.Context, roleID, accessID int64) (bool, error) {
	var has bool
	err := s.run(ctx, "has_access", func(ctx context.Context, tx Tx) error {
		if _, err := mustRole(ctx, tx, roleID); err != nil {
			return err
		}
		_, ok, err := tx.Accesses().FindByID(ctx, accessID)
		if err != nil || !ok {
			return err
		}
		has, err = tx.RoleAccesses().Exists(ctx, roleID, accessID)
		return err
	})
	return has, err
}

// RoleHasAccessByName scans the role's accesses for an exact, case-sensitive name match.
func (s *RoleService) RoleHasAccessByName(ctx context.Context, roleID int64, accessName string) (bool, error) {
	detail, err := s.withAccesses(ctx, "has_access_by_name", roleID)
	if err != nil {
		return false, err
	}
	return detail.HasAccessNamed(normalizeName(accessName)), nil
}

// GetUserCountByRole returns how many users reference an existing role.
func (s *RoleService) GetUserCountByRole(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := s.run(ctx, "user_count", func(ctx context.Context, tx Tx) error {
		if _, err := mustRole(ctx, tx, roleID); err != nil {
			return err
		}
		var err error
		count, err = tx.Roles().CountUsers(ctx, roleID)
		return err
	})
	return count, err
}

func (s *RoleService) withAccesses(ctx context.Context, op string, id int64) (RoleWithAccesses, error) {
	var detail RoleWithAccesses
	err := s.run(ctx, op, func(ctx context.Context, tx Tx) error {
		var err error
		detail, err = loadRoleWithAccesses(ctx, tx, id)
		return err
	})
	return detail, err
}

func mustRole(ctx context.Context, tx Tx, id int64) (Role, error) {
	role, ok, err := tx.Roles().FindByID(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return role, nil
}

func loadRoleWithAccesses(ctx context.Context, tx Tx, id int64) (RoleWithAccesses, error) {
	role, err := mustRole(ctx, tx, id)
	if err != nil {
		return RoleWithAccesses{}, err
	}
	accesses, err := tx.Accesses().ListByRole(ctx, id)
	if err != nil {
		return RoleWithAccesses{}, err
	}
	return RoleWithAccesses{Role: role, Accesses: accesses}, nil
}
