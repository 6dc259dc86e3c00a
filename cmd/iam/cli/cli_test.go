package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-iam/internal/rbac"
	"github.com/odyssey-erp/odyssey-iam/internal/shared"
	"github.com/odyssey-erp/odyssey-iam/jobs"
)

const seedTOML = `
[[access]]
name = "VIEW_REPORT"
description = "Read reports"
module = "reports"
action = "VIEW"

[[access]]
name = "EXPORT_REPORT"
module = "reports"
action = "READ"

[[role]]
name = "Consultant"
description = "External advisers"
accesses = ["VIEW_REPORT", "EXPORT_REPORT", "VIEW_REPORT"]

[[role]]
name = "Guest"
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roles.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	file, err := LoadSeedFile(writeSeed(t, seedTOML))
	require.NoError(t, err)
	require.Len(t, file.Accesses, 2)
	require.Len(t, file.Roles, 2)
	assert.Equal(t, SeedAccess{Name: "VIEW_REPORT", Description: "Read reports", Module: "reports", Action: "VIEW"}, file.Accesses[0])
	assert.Equal(t, []string{"VIEW_REPORT", "EXPORT_REPORT", "VIEW_REPORT"}, file.Roles[0].Accesses)
	assert.Empty(t, file.Roles[1].Accesses)
}

func TestLoadSeedFileRejectsUnknownKeys(t *testing.T) {
	_, err := LoadSeedFile(writeSeed(t, "[[role]]\nname = \"Admin\"\naccess = [\"X\"]\n"))
	require.ErrorContains(t, err, "unknown keys")

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

// catalog is an in-memory stand-in for the access and role services.
type catalog struct {
	accesses map[string]rbac.Access
	roles    map[string]rbac.Role
	links    map[int64]map[int64]bool
	nextID   int64
}

func newCatalog() *catalog {
	return &catalog{accesses: map[string]rbac.Access{}, roles: map[string]rbac.Role{}, links: map[int64]map[int64]bool{}}
}

func (c *catalog) GetAccessByName(ctx context.Context, name string) (rbac.Access, error) {
	a, ok := c.accesses[name]
	if !ok {
		return rbac.Access{}, fmt.Errorf("%w: access %q", shared.ErrNotFound, name)
	}
	return a, nil
}

func (c *catalog) CreateAccess(ctx context.Context, req rbac.CreateAccessRequest) (rbac.Access, error) {
	c.nextID++
	a := rbac.Access{ID: c.nextID, Name: req.Name, Description: req.Description, ModuleName: req.ModuleName, ActionType: req.ActionType}
	c.accesses[req.Name] = a
	return a, nil
}

func (c *catalog) GetRoleByName(ctx context.Context, name string) (rbac.Role, error) {
	r, ok := c.roles[name]
	if !ok {
		return rbac.Role{}, fmt.Errorf("%w: role %q", shared.ErrNotFound, name)
	}
	return r, nil
}

func (c *catalog) CreateRole(ctx context.Context, req rbac.CreateRoleRequest) (rbac.Role, error) {
	c.nextID++
	r := rbac.Role{ID: c.nextID, Name: req.Name, Description: req.Description}
	c.roles[req.Name] = r
	return r, nil
}

func (c *catalog) held(roleID int64) []rbac.Access {
	out := []rbac.Access{}
	for _, a := range c.accesses {
		if c.links[roleID][a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func (c *catalog) ListRoleAccesses(ctx context.Context, roleID int64) ([]rbac.Access, error) {
	return c.held(roleID), nil
}

func (c *catalog) AddMultipleAccessToRole(ctx context.Context, roleID int64, accessIDs []int64) (rbac.RoleWithAccesses, error) {
	if c.links[roleID] == nil {
		c.links[roleID] = map[int64]bool{}
	}
	for _, id := range accessIDs {
		c.links[roleID][id] = true
	}
	return rbac.RoleWithAccesses{Accesses: c.held(roleID)}, nil
}

func TestSeederApplyIsIdempotent(t *testing.T) {
	file, err := LoadSeedFile(writeSeed(t, seedTOML))
	require.NoError(t, err)
	cat := newCatalog()
	seeder := Seeder{Accesses: cat, Roles: cat}

	report, err := seeder.Apply(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{AccessesCreated: 2, RolesCreated: 2, Grants: 2}, report)

	report, err = seeder.Apply(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{}, report)
	assert.Len(t, cat.held(cat.roles["Consultant"].ID), 2)
}

func TestSeederUnknownAccessName(t *testing.T) {
	cat := newCatalog()
	seeder := Seeder{Accesses: cat, Roles: cat}

	_, err := seeder.Apply(context.Background(), SeedFile{Roles: []SeedRole{{Name: "Admin", Accesses: []string{"MISSING"}}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorContains(t, err, "Admin")
}

type stubInspector struct {
	info  *asynq.QueueInfo
	tasks []*asynq.TaskInfo
	err   error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.tasks, s.err
}

func (s stubInspector) Close() error { return nil }

func TestJobsCLIInspect(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{
		info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1},
		tasks: []*asynq.TaskInfo{
			{ID: "a", Type: jobs.TaskUserNotify},
			{ID: "b", Type: "other:task"},
		},
	}}

	stats, err := c.InspectQueue()
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}, stats)

	pending, err := c.ListPendingNotifications(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ID)

	failing := &JobsCLI{inspector: stubInspector{err: errors.New("redis down")}}
	_, err = failing.InspectQueue()
	require.Error(t, err)

	var unset *JobsCLI
	_, err = unset.InspectQueue()
	require.Error(t, err)
	require.NoError(t, unset.Close())
}

func TestExampleSeedFileParses(t *testing.T) {
	file, err := LoadSeedFile(filepath.Join("..", "roles.example.toml"))
	require.NoError(t, err)
	assert.Len(t, file.Accesses, 2)
	assert.Equal(t, "Controller", file.Roles[1].Name)
}
