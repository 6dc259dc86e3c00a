package rbac

import "time"

// Active flag values stored in users.is_active.
const (
	UserInactive = 0
	UserActive   = 1
)

// Access represents an atomic permission grant scoped to a module and action.
type Access struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ModuleName  string    `json:"module_name,omitempty"`
	ActionType  string    `json:"action_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role represents a named bundle of accesses assigned to users.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleWithAccesses is a role loaded together with its access set.
type RoleWithAccesses struct {
	Role
	Accesses []Access `json:"accesses"`
}

// HasAccess reports whether the loaded access set contains accessID.
func (r RoleWithAccesses) HasAccess(accessID int64) bool {
	for _, a := range r.Accesses {
		if a.ID == accessID {
			return true
		}
	}
	return false
}

// HasAccessNamed reports whether the loaded access set contains an access named exactly name.
func (r RoleWithAccesses) HasAccessNamed(name string) bool {
	for _, a := range r.Accesses {
		if a.Name == name {
			return true
		}
	}
	return false
}

// User is an account holder with exactly one role.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	IsActive  int       `json:"is_active"`
	RoleID    int64     `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the account is enabled.
func (u User) Active() bool {
	return u.IsActive == UserActive
}
