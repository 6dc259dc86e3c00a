package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/odyssey-erp/odyssey-iam/internal/rbac"
)

// UserManager is the part of rbac.UserService driven from the command line.
type UserManager interface {
	CreateUser(ctx context.Context, req rbac.CreateUserRequest) (rbac.User, error)
	GetUserByUsername(ctx context.Context, username string) (rbac.User, error)
	ActivateUser(ctx context.Context, id int64) (rbac.User, error)
	DeactivateUser(ctx context.Context, id int64) (rbac.User, error)
	ChangePassword(ctx context.Context, id int64, newPassword string) (rbac.User, error)
	ChangeUserRole(ctx context.Context, id, roleID int64) (rbac.User, error)
	ListUsers(ctx context.Context) ([]rbac.User, error)
}

// RoleLookup resolves role names given on the command line.
type RoleLookup interface {
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
}

// UserCommand runs `iam user <action>` subcommands and prints results as JSON.
type UserCommand struct {
	Users  UserManager
	Roles  RoleLookup
	Stdout io.Writer
}

var errUsage = errors.New("usage: iam user <create|activate|deactivate|passwd|role|list> [flags]")

// Run dispatches args[0] to the matching action.
func (c UserCommand) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	action, rest := args[0], args[1:]
	fs := flag.NewFlagSet("user "+action, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("username", "", "account username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	roleName := fs.String("role", "", "role name")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch action {
	case "create":
		role, err := c.Roles.GetRoleByName(ctx, *roleName)
		if err != nil {
			return err
		}
		user, err := c.Users.CreateUser(ctx, rbac.CreateUserRequest{
			Username:  *username,
			Email:     *email,
			Password:  *password,
			FirstName: *firstName,
			LastName:  *lastName,
			RoleID:    role.ID,
		})
		if err != nil {
			return err
		}
		return c.print(user)
	case "activate", "deactivate", "passwd", "role":
		user, err := c.Users.GetUserByUsername(ctx, *username)
		if err != nil {
			return err
		}
		switch action {
		case "activate":
			user, err = c.Users.ActivateUser(ctx, user.ID)
		case "deactivate":
			user, err = c.Users.DeactivateUser(ctx, user.ID)
		case "passwd":
			user, err = c.Users.ChangePassword(ctx, user.ID, *password)
		case "role":
			var role rbac.Role
			if role, err = c.Roles.GetRoleByName(ctx, *roleName); err == nil {
				user, err = c.Users.ChangeUserRole(ctx, user.ID, role.ID)
			}
		}
		if err != nil {
			return err
		}
		return c.print(user)
	case "list":
		users, err := c.Users.ListUsers(ctx)
		if err != nil {
			return err
		}
		return c.print(users)
	default:
		return fmt.Errorf("unknown user action %q: %w", action, errUsage)
	}
}

func (c UserCommand) print(v any) error {
	enc := json.NewEncoder(c.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
