package rbac

// CreateAccessRequest describes a new access.
type CreateAccessRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
	ModuleName  string `json:"module_name" validate:"max=50"`
	ActionType  string `json:"action_type" validate:"max=50"`
}

// UpdateAccessRequest carries optional changes; nil fields are left untouched.
type UpdateAccessRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
	ModuleName  *string `json:"module_name,omitempty" validate:"omitempty,max=50"`
	ActionType  *string `json:"action_type,omitempty" validate:"omitempty,max=50"`
}

// CreateRoleRequest describes a new role.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// UpdateRoleRequest carries optional role changes.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
}

// CreateUserRequest describes a new account.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,max=255"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	RoleID    int64  `json:"role_id" validate:"required,gt=0"`
}

// UpdateUserRequest carries optional account changes. IsActive accepts only
// UserInactive or UserActive.
type UpdateUserRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,max=100"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	RoleID    *int64  `json:"role_id,omitempty"`
	IsActive  *int    `json:"is_active,omitempty" validate:"omitempty,oneof=0 1"`
}
