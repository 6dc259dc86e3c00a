package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// UserService manages accounts and their role assignment.
type UserService struct {
	base
}

// NewUserService builds a UserService.
func NewUserService(deps Deps) *UserService {
	return &UserService{base: newBase("user", deps)}
}

// CreateUser registers an active account. Checks run in a fixed order and
// the first failure wins: username, email, then role existence.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	req.Username = normalizeName(req.Username)
	req.Email = normalizeName(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if blank(req.Password) {
		return User{}, requiredField("password")
	}
	if err := validateInput(req); err != nil {
		return User{}, err
	}

	var created User
	err := s.run(ctx, "create", func(ctx context.Context, tx Tx) error {
		users := tx.Users()
		taken, err := users.ExistsByUsername(ctx, req.Username)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: username %q already used", shared.ErrConflict, req.Username)
		}
		taken, err = users.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: email %q already used", shared.ErrConflict, req.Email)
		}
		if _, err := mustRole(ctx, tx, req.RoleID); err != nil {
			return err
		}
		created, err = users.Insert(ctx, User{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			IsActive:  UserActive,
			RoleID:    req.RoleID,
		})
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_CREATE", "user", created.ID, map[string]any{"username": created.Username, "role_id": created.RoleID})
	s.notify(ctx, newUserEvent(UserEventCreated, created))
	return created, nil
}

// GetUser returns the user with id.
func (s *UserService) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.run(ctx, "get", func(ctx context.Context, tx Tx) error {
		var err error
		user, err = mustUser(ctx, tx, id)
		return err
	})
	return user, err
}

// GetUserByUsername returns the user with username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (User, error) {
	username = normalizeName(username)
	return s.getBy(ctx, "get_by_username", func(ctx context.Context, repo UserRepository) (User, bool, error) {
		return repo.FindByUsername(ctx, username)
	}, "username "+username)
}

// GetUserByEmail returns the user with email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (User, error) {
	email = normalizeName(email)
	return s.getBy(ctx, "get_by_email", func(ctx context.Context, repo UserRepository) (User, bool, error) {
		return repo.FindByEmail(ctx, email)
	}, "email "+email)
}

// UpdateUser applies the provided fields. Email is re-checked only when it
// changes and the role is validated only when it changes.
func (s *UserService) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	req.Email = normalizeOptional(req.Email)
	req.FirstName = trimOptional(req.FirstName)
	req.LastName = trimOptional(req.LastName)
	if req.Email != nil && *req.Email == "" {
		return User{}, requiredField("email")
	}
	if err := validateInput(req); err != nil {
		return User{}, err
	}

	var updated User
	roleChanged := false
	err := s.run(ctx, "update", func(ctx context.Context, tx Tx) error {
		user, err := mustUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Email != nil && *req.Email != user.Email {
			taken, err := tx.Users().ExistsByEmail(ctx, *req.Email)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: email %q already used", shared.ErrConflict, *req.Email)
			}
			user.Email = *req.Email
		}
		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.RoleID != nil && *req.RoleID != user.RoleID {
			if _, err := mustRole(ctx, tx, *req.RoleID); err != nil {
				return err
			}
			user.RoleID = *req.RoleID
			roleChanged = true
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		updated, err = tx.Users().Update(ctx, user)
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_UPDATE", "user", updated.ID, map[string]any{"email": updated.Email, "role_id": updated.RoleID, "is_active": updated.IsActive})
	if roleChanged {
		s.notify(ctx, newUserEvent(UserEventRoleChanged, updated))
	}
	return updated, nil
}

// DeleteUser removes the account.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	var username string
	err := s.run(ctx, "delete", func(ctx context.Context, tx Tx) error {
		user, err := mustUser(ctx, tx, id)
		if err != nil {
			return err
		}
		username = user.Username
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "USER_DELETE", "user", id, map[string]any{"username": username})
	return nil
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context) ([]User, error) {
	return s.list(ctx, "list", nil, func(ctx context.Context, repo UserRepository) ([]User, error) {
		return repo.List(ctx)
	})
}

// ListActiveUsers returns accounts whose flag is active.
func (s *UserService) ListActiveUsers(ctx context.Context) ([]User, error) {
	return s.list(ctx, "list_active", nil, func(ctx context.Context, repo UserRepository) ([]User, error) {
		return repo.ListActive(ctx)
	})
}

// ListUsersByRole returns the accounts of an existing role.
func (s *UserService) ListUsersByRole(ctx context.Context, roleID int64) ([]User, error) {
	return s.list(ctx, "list_by_role", &roleID, func(ctx context.Context, repo UserRepository) ([]User, error) {
		return repo.ListByRole(ctx, roleID)
	})
}

// ListActiveUsersByRole returns the active accounts of an existing role.
func (s *UserService) ListActiveUsersByRole(ctx context.Context, roleID int64) ([]User, error) {
	return s.list(ctx, "list_active_by_role", &roleID, func(ctx context.Context, repo UserRepository) ([]User, error) {
		return repo.ListActiveByRole(ctx, roleID)
	})
}

// ActivateUser sets the active flag.
func (s *UserService) ActivateUser(ctx context.Context, id int64) (User, error) {
	return s.setActive(ctx, "activate", id, UserActive)
}

// DeactivateUser clears the active flag.
func (s *UserService) DeactivateUser(ctx context.Context, id int64) (User, error) {
	return s.setActive(ctx, "deactivate", id, UserInactive)
}

// ChangePassword overwrites the stored credential. The user is looked up
// first, so an unknown id wins over a blank value.
func (s *UserService) ChangePassword(ctx context.Context, id int64, newPassword string) (User, error) {
	var updated User
	err := s.run(ctx, "change_password", func(ctx context.Context, tx Tx) error {
		if _, err := mustUser(ctx, tx, id); err != nil {
			return err
		}
		if blank(newPassword) {
			return requiredField("password")
		}
		if len(newPassword) > 255 {
			return fmt.Errorf("%w: password must satisfy max=255", shared.ErrValidation)
		}
		var err error
		updated, err = tx.Users().SetPassword(ctx, id, newPassword)
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_PASSWORD_CHANGE", "user", id, nil)
	s.notify(ctx, newUserEvent(UserEventPasswordChanged, updated))
	return updated, nil
}

// ChangeUserRole reassigns the user to an existing role.
func (s *UserService) ChangeUserRole(ctx context.Context, id, roleID int64) (User, error) {
	var updated User
	var previous int64
	err := s.run(ctx, "change_role", func(ctx context.Context, tx Tx) error {
		user, err := mustUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := mustRole(ctx, tx, roleID); err != nil {
			return err
		}
		previous = user.RoleID
		updated, err = tx.Users().SetRole(ctx, id, roleID)
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_ROLE_CHANGE", "user", id, map[string]any{"from_role_id": previous, "to_role_id": roleID})
	if previous != roleID {
		s.notify(ctx, newUserEvent(UserEventRoleChanged, updated))
	}
	return updated, nil
}

// UsernameExists reports whether username is taken.
func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	username = normalizeName(username)
	var exists bool
	err := s.run(ctx, "exists_by_username", func(ctx context.Context, tx Tx) error {
		var err error
		exists, err = tx.Users().ExistsByUsername(ctx, username)
		return err
	})
	return exists, err
}

// EmailExists reports whether email is taken.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	email = normalizeName(email)
	var exists bool
	err := s.run(ctx, "exists_by_email", func(ctx context.Context, tx Tx) error {
		var err error
		exists, err = tx.Users().ExistsByEmail(ctx, email)
		return err
	})
	return exists, err
}

func (s *UserService) setActive(ctx context.Context, op string, id int64, flag int) (User, error) {
	var updated User
	err := s.run(ctx, op, func(ctx context.Context, tx Tx) error {
		if _, err := mustUser(ctx, tx, id); err != nil {
			return err
		}
		var err error
		updated, err = tx.Users().SetActive(ctx, id, flag)
		return err
	})
	if err != nil {
		return User{}, err
	}
	action, kind := "USER_ACTIVATE", UserEventActivated
	if flag == UserInactive {
		action, kind = "USER_DEACTIVATE", UserEventDeactivated
	}
	s.recordAudit(ctx, action, "user", id, nil)
	s.notify(ctx, newUserEvent(kind, updated))
	return updated, nil
}

func (s *UserService) getBy(ctx context.Context, op string, find func(context.Context, UserRepository) (User, bool, error), label string) (User, error) {
	var user User
	err := s.run(ctx, op, func(ctx context.Context, tx Tx) error {
		found, ok, err := find(ctx, tx.Users())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: user with %s", shared.ErrNotFound, label)
		}
		user = found
		return nil
	})
	return user, err
}

// list runs fetch, validating the role first when roleID is set.
func (s *UserService) list(ctx context.Context, op string, roleID *int64, fetch func(context.Context, UserRepository) ([]User, error)) ([]User, error) {
	var users []User
	err := s.run(ctx, op, func(ctx context.Context, tx Tx) error {
		if roleID != nil {
			if _, err := mustRole(ctx, tx, *roleID); err != nil {
				return err
			}
		}
		var err error
		users, err = fetch(ctx, tx.Users())
		return err
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) notify(ctx context.Context, event UserEvent) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.NotifyUser(ctx, event); err != nil {
		s.deps.Logger.Warn("notify user", slog.String("kind", string(event.Kind)), slog.Int64("user_id", event.UserID), slog.Any("error", err))
	}
}

func mustUser(ctx context.Context, tx Tx, id int64) (User, error) {
	user, ok, err := tx.Users().FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return user, nil
}
