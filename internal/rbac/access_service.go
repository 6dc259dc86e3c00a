package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// AccessService applies business rules to access management.
type AccessService struct {
	base
}

// NewAccessService builds an AccessService.
func NewAccessService(deps Deps) *AccessService {
	return &AccessService{base: newBase("access", deps)}
}

// CreateAccess inserts a new access; its name must be unused.
func (s *AccessService) CreateAccess(ctx context.Context, req CreateAccessRequest) (Access, error) {
	req.Name = normalizeName(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.ModuleName = strings.TrimSpace(req.ModuleName)
	req.ActionType = strings.TrimSpace(req.ActionType)
	if err := validateInput(req); err != nil {
		return Access{}, err
	}

	var created Access
	err := s.run(ctx, "create", func(ctx context.Context, tx Tx) error {
		exists, err := tx.Accesses().ExistsByName(ctx, req.Name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: access %q already exists", shared.ErrConflict, req.Name)
		}
		created, err = tx.Accesses().Insert(ctx, Access{
			Name:        req.Name,
			Description: req.Description,
			ModuleName:  req.ModuleName,
			ActionType:  req.ActionType,
		})
		return err
	})
	if err != nil {
		return Access{}, err
	}
	s.recordAudit(ctx, "ACCESS_CREATE", "access", created.ID, map[string]any{"name": created.Name, "module": created.ModuleName, "action": created.ActionType})
	return created, nil
}

// GetAccess returns the access with id.
func (s *AccessService) GetAccess(ctx context.Context, id int64) (Access, error) {
	var access Access
	err := s.run(ctx, "get", func(ctx context.Context, tx Tx) error {
		var err error
		access, err = mustAccess(ctx, tx, id)
		return err
	})
	return access, err
}

// GetAccessByName returns the access named name.
func (s *AccessService) GetAccessByName(ctx context.Context, name string) (Access, error) {
	name = normalizeName(name)
	var access Access
	err := s.run(ctx, "get_by_name", func(ctx context.Context, tx Tx) error {
		found, ok, err := tx.Accesses().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: access %q", shared.ErrNotFound, name)
		}
		access = found
		return nil
	})
	return access, err
}

// UpdateAccess applies the provided fields. The name is re-checked for
// uniqueness only when it changes.
func (s *AccessService) UpdateAccess(ctx context.Context, id int64, req UpdateAccessRequest) (Access, error) {
	req.Name = normalizeOptional(req.Name)
	req.Description = trimOptional(req.Description)
	req.ModuleName = trimOptional(req.ModuleName)
	req.ActionType = trimOptional(req.ActionType)
	if req.Name != nil && *req.Name == "" {
		return Access{}, requiredField("name")
	}
	if err := validateInput(req); err != nil {
		return Access{}, err
	}

	var updated Access
	err := s.run(ctx, "update", func(ctx context.Context, tx Tx) error {
		access, err := mustAccess(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Name != nil && *req.Name != access.Name {
			exists, err := tx.Accesses().ExistsByName(ctx, *req.Name)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: access %q already exists", shared.ErrConflict, *req.Name)
			}
			access.Name = *req.Name
		}
		if req.Description != nil {
			access.Description = *req.Description
		}
		if req.ModuleName != nil {
			access.ModuleName = *req.ModuleName
		}
		if req.ActionType != nil {
			access.ActionType = *req.ActionType
		}
		updated, err = tx.Accesses().Update(ctx, access)
		return err
	})
	if err != nil {
		return Access{}, err
	}
	s.recordAudit(ctx, "ACCESS_UPDATE", "access", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

// DeleteAccess removes the access and, through the store, its role links.
func (s *AccessService) DeleteAccess(ctx context.Context, id int64) error {
	var name string
	err := s.run(ctx, "delete", func(ctx context.Context, tx Tx) error {
		access, err := mustAccess(ctx, tx, id)
		if err != nil {
			return err
		}
		name = access.Name
		return tx.Accesses().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "ACCESS_DELETE", "access", id, map[string]any{"name": name})
	return nil
}

// ListAccesses returns every access.
func (s *AccessService) ListAccesses(ctx context.Context) ([]Access, error) {
	return s.list(ctx, "list", func(ctx context.Context, repo AccessRepository) ([]Access, error) {
		return repo.List(ctx)
	})
}

// ListAccessesByModule returns the accesses grouped under module.
func (s *AccessService) ListAccessesByModule(ctx context.Context, module string) ([]Access, error) {
	return s.list(ctx, "list_by_module", func(ctx context.Context, repo AccessRepository) ([]Access, error) {
		return repo.ListByModule(ctx, strings.TrimSpace(module))
	})
}

// ListAccessesByActionType returns the accesses with actionType.
func (s *AccessService) ListAccessesByActionType(ctx context.Context, actionType string) ([]Access, error) {
	return s.list(ctx, "list_by_action", func(ctx context.Context, repo AccessRepository) ([]Access, error) {
		return repo.ListByActionType(ctx, strings.TrimSpace(actionType))
	})
}

// ListAccessesByRole returns the accesses linked to roleID. An unknown role
// yields an empty list.
func (s *AccessService) ListAccessesByRole(ctx context.Context, roleID int64) ([]Access, error) {
	return s.list(ctx, "list_by_role", func(ctx context.Context, repo AccessRepository) ([]Access, error) {
		return repo.ListByRole(ctx, roleID)
	})
}

// AccessNameExists reports whether name is already used.
func (s *AccessService) AccessNameExists(ctx context.Context, name string) (bool, error) {
	name = normalizeName(name)
	var exists bool
	err := s.run(ctx, "exists_by_name", func(ctx context.Context, tx Tx) error {
		var err error
		exists, err = tx.Accesses().ExistsByName(ctx, name)
		return err
	})
	return exists, err
}

func (s *AccessService) list(ctx context.Context, op string, fetch func(context.Context, AccessRepository) ([]Access, error)) ([]Access, error) {
	var accesses []Access
	err := s.run(ctx, op, func(ctx context.Context, tx Tx) error {
		var err error
		accesses, err = fetch(ctx, tx.Accesses())
		return err
	})
	if err != nil {
		return nil, err
	}
	return accesses, nil
}

func mustAccess(ctx context.Context, tx Tx, id int64) (Access, error) {
	access, ok, err := tx.Accesses().FindByID(ctx, id)
	if err != nil {
		return Access{}, err
	}
	if !ok {
		return Access{}, fmt.Errorf("%w: access %d", shared.ErrNotFound, id)
	}
	return access, nil
}
