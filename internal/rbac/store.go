package rbac

import "context"

// Store opens transactional units of work. Implementations commit when fn
// returns nil and roll back on any error.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Accesses() AccessRepository
	Roles() RoleRepository
	RoleAccesses() RoleAccessRepository
	Users() UserRepository
}

// AccessRepository persists Access rows. Find methods report absence through
// the boolean instead of failing.
type AccessRepository interface {
	Insert(ctx context.Context, access Access) (Access, error)
	FindByID(ctx context.Context, id int64) (Access, bool, error)
	FindByName(ctx context.Context, name string) (Access, bool, error)
	Update(ctx context.Context, access Access) (Access, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Access, error)
	ListByModule(ctx context.Context, module string) ([]Access, error)
	ListByActionType(ctx context.Context, actionType string) ([]Access, error)
	ListByRole(ctx context.Context, roleID int64) ([]Access, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// RoleRepository persists Role rows.
type RoleRepository interface {
	Insert(ctx context.Context, role Role) (Role, error)
	FindByID(ctx context.Context, id int64) (Role, bool, error)
	FindByName(ctx context.Context, name string) (Role, bool, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Role, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	CountUsers(ctx context.Context, roleID int64) (int64, error)
}

// RoleAccessRepository maintains the role_access join table.
type RoleAccessRepository interface {
	Link(ctx context.Context, roleID, accessID int64) error
	Unlink(ctx context.Context, roleID, accessID int64) error
	Exists(ctx context.Context, roleID, accessID int64) (bool, error)
}

// UserRepository persists User rows.
type UserRepository interface {
	Insert(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id int64) (User, bool, error)
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	FindByEmail(ctx context.Context, email string) (User, bool, error)
	Update(ctx context.Context, user User) (User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]User, error)
	ListActive(ctx context.Context) ([]User, error)
	ListByRole(ctx context.Context, roleID int64) ([]User, error)
	ListActiveByRole(ctx context.Context, roleID int64) ([]User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetActive(ctx context.Context, id int64, active int) (User, error)
	SetPassword(ctx context.Context, id int64, password string) (User, error)
	SetRole(ctx context.Context, id, roleID int64) (User, error)
}
