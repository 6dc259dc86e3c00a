package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/odyssey-erp/odyssey-iam/internal/rbac"
	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// SeedFile is the declarative catalogue of accesses and roles.
//
//	[[access]]
//	name = "VIEW_REPORT"
//	module = "reports"
//	action = "VIEW"
//
//	[[role]]
//	name = "Consultant"
//	accesses = ["VIEW_REPORT"]
type SeedFile struct {
	Accesses []SeedAccess `toml:"access"`
	Roles    []SeedRole   `toml:"role"`
}

// SeedAccess declares one access.
type SeedAccess struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Module      string `toml:"module"`
	Action      string `toml:"action"`
}

// SeedRole declares one role and the access names it holds.
type SeedRole struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Accesses    []string `toml:"accesses"`
}

// LoadSeedFile decodes path. Unknown keys are rejected so typos do not
// silently drop grants.
func LoadSeedFile(path string) (SeedFile, error) {
	var file SeedFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return SeedFile{}, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return SeedFile{}, fmt.Errorf("seed: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return file, nil
}

// AccessCatalog is the part of rbac.AccessService the seeder uses.
type AccessCatalog interface {
	GetAccessByName(ctx context.Context, name string) (rbac.Access, error)
	CreateAccess(ctx context.Context, req rbac.CreateAccessRequest) (rbac.Access, error)
}

// RoleCatalog is the part of rbac.RoleService the seeder uses.
type RoleCatalog interface {
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
	CreateRole(ctx context.Context, req rbac.CreateRoleRequest) (rbac.Role, error)
	ListRoleAccesses(ctx context.Context, roleID int64) ([]rbac.Access, error)
	AddMultipleAccessToRole(ctx context.Context, roleID int64, accessIDs []int64) (rbac.RoleWithAccesses, error)
}

// SeedReport counts what a seed run changed.
type SeedReport struct {
	AccessesCreated int
	RolesCreated    int
	Grants          int
}

// Seeder applies a SeedFile. Existing rows are reused, so running the same
// file twice changes nothing.
type Seeder struct {
	Accesses AccessCatalog
	Roles    RoleCatalog
}

// Apply creates missing accesses and roles, then grants each role its accesses.
func (s Seeder) Apply(ctx context.Context, file SeedFile) (SeedReport, error) {
	var report SeedReport
	ids := make(map[string]int64, len(file.Accesses))
	for _, decl := range file.Accesses {
		access, created, err := s.ensureAccess(ctx, decl)
		if err != nil {
			return report, err
		}
		if created {
			report.AccessesCreated++
		}
		ids[access.Name] = access.ID
	}

	for _, decl := range file.Roles {
		role, created, err := s.ensureRole(ctx, decl)
		if err != nil {
			return report, err
		}
		if created {
			report.RolesCreated++
		}
		if len(decl.Accesses) == 0 {
			continue
		}
		grant := make([]int64, 0, len(decl.Accesses))
		for _, name := range decl.Accesses {
			id, ok := ids[name]
			if !ok {
				access, err := s.Accesses.GetAccessByName(ctx, name)
				if err != nil {
					return report, fmt.Errorf("seed: role %q: %w", decl.Name, err)
				}
				id = access.ID
				ids[name] = id
			}
			grant = append(grant, id)
		}
		held, err := s.Roles.ListRoleAccesses(ctx, role.ID)
		if err != nil {
			return report, fmt.Errorf("seed: role %q: %w", decl.Name, err)
		}
		detail, err := s.Roles.AddMultipleAccessToRole(ctx, role.ID, grant)
		if err != nil {
			return report, fmt.Errorf("seed: grant role %q: %w", decl.Name, err)
		}
		report.Grants += len(detail.Accesses) - len(held)
	}
	return report, nil
}

func (s Seeder) ensureAccess(ctx context.Context, decl SeedAccess) (rbac.Access, bool, error) {
	existing, err := s.Accesses.GetAccessByName(ctx, decl.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return rbac.Access{}, false, fmt.Errorf("seed: access %q: %w", decl.Name, err)
	}
	created, err := s.Accesses.CreateAccess(ctx, rbac.CreateAccessRequest{
		Name:        decl.Name,
		Description: decl.Description,
		ModuleName:  decl.Module,
		ActionType:  decl.Action,
	})
	if err != nil {
		return rbac.Access{}, false, fmt.Errorf("seed: create access %q: %w", decl.Name, err)
	}
	return created, true, nil
}

func (s Seeder) ensureRole(ctx context.Context, decl SeedRole) (rbac.Role, bool, error) {
	existing, err := s.Roles.GetRoleByName(ctx, decl.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return rbac.Role{}, false, fmt.Errorf("seed: role %q: %w", decl.Name, err)
	}
	created, err := s.Roles.CreateRole(ctx, rbac.CreateRoleRequest{Name: decl.Name, Description: decl.Description})
	if err != nil {
		return rbac.Role{}, false, fmt.Errorf("seed: create role %q: %w", decl.Name, err)
	}
	return created, true, nil
}
