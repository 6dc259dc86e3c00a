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

const userColumns = `id, username, email, password, first_name, last_name, is_active, role_id, created_at, updated_at`

// UserRepo provides PostgreSQL backed persistence for users.
type UserRepo struct {
	db db.DBTX
}

// NewUserRepo constructs a user repository on a pool or transaction.
func NewUserRepo(conn db.DBTX) *UserRepo {
	return &UserRepo{db: conn}
}

// Insert creates a user.
func (r *UserRepo) Insert(ctx context.Context, user User) (User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (username, email, password, first_name, last_name, is_active, role_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.Username, user.Email, user.Password, nullText(user.FirstName), nullText(user.LastName), user.IsActive, user.RoleID)
	created, err := scanUser(row)
	if err != nil {
		return User{}, userWriteError(user, err)
	}
	return created, nil
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (User, bool, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername fetches a user by username.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (User, bool, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail fetches a user by email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Update writes the profile columns, active flag and role.
func (r *UserRepo) Update(ctx context.Context, user User) (User, error) {
	row := r.db.QueryRow(ctx, `UPDATE users
		SET email = $2, first_name = $3, last_name = $4, is_active = $5, role_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Email, nullText(user.FirstName), nullText(user.LastName), user.IsActive, user.RoleID)
	return r.returning(row, user)
}

// Delete removes a user.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return nil
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListActive returns users whose flag is active.
func (r *UserRepo) ListActive(ctx context.Context) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = $1 ORDER BY id`, UserActive)
}

// ListByRole returns the users assigned to a role.
func (r *UserRepo) ListByRole(ctx context.Context, roleID int64) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role_id = $1 ORDER BY id`, roleID)
}

// ListActiveByRole returns the active users assigned to a role.
func (r *UserRepo) ListActiveByRole(ctx context.Context, roleID int64) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role_id = $1 AND is_active = $2 ORDER BY id`, roleID, UserActive)
}

// ExistsByUsername reports whether username is taken.
func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// ExistsByEmail reports whether email is taken.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// SetActive toggles only the active flag.
func (r *UserRepo) SetActive(ctx context.Context, id int64, active int) (User, error) {
	row := r.db.QueryRow(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, active)
	return r.returning(row, User{ID: id})
}

// SetPassword overwrites the stored credential.
func (r *UserRepo) SetPassword(ctx context.Context, id int64, password string) (User, error) {
	row := r.db.QueryRow(ctx, `UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, password)
	return r.returning(row, User{ID: id})
}

// SetRole reassigns the user to roleID.
func (r *UserRepo) SetRole(ctx context.Context, id, roleID int64) (User, error) {
	row := r.db.QueryRow(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, roleID)
	return r.returning(row, User{ID: id, RoleID: roleID})
}

func (r *UserRepo) returning(row pgx.Row, target User) (User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, target.ID)
		}
		return User{}, userWriteError(target, err)
	}
	return user, nil
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg any) (User, bool, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return user, true, nil
}

func (r *UserRepo) list(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

func scanUser(row rowScanner) (User, error) {
	var (
		u                   User
		firstName, lastName pgtype.Text
		active              int16
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &firstName, &lastName, &active, &u.RoleID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.IsActive = int(active)
	return u, nil
}

func userWriteError(user User, err error) error {
	switch {
	case db.IsUniqueViolation(err):
		switch db.ConstraintName(err) {
		case "users_email_key":
			return fmt.Errorf("%w: email %q already used", shared.ErrConflict, user.Email)
		case "users_username_key":
			return fmt.Errorf("%w: username %q already used", shared.ErrConflict, user.Username)
		}
		return fmt.Errorf("%w: user already exists", shared.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, user.RoleID)
	default:
		return err
	}
}

var _ UserRepository = (*UserRepo)(nil)
