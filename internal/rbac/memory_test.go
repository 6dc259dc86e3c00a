package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

type linkKey struct {
	roleID   int64
	accessID int64
}

type memoryState struct {
	accesses map[int64]Access
	roles    map[int64]Role
	links    map[linkKey]struct{}
	users    map[int64]User
	nextID   int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		accesses: make(map[int64]Access, len(s.accesses)),
		roles:    make(map[int64]Role, len(s.roles)),
		links:    make(map[linkKey]struct{}, len(s.links)),
		users:    make(map[int64]User, len(s.users)),
		nextID:   s.nextID,
	}
	for k, v := range s.accesses {
		c.accesses[k] = v
	}
	for k, v := range s.roles {
		c.roles[k] = v
	}
	for k := range s.links {
		c.links[k] = struct{}{}
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

// memoryStore mimics PGStore: each WithTx works on a copy that replaces the
// committed state only when fn succeeds.
type memoryStore struct {
	mu        sync.Mutex
	state     *memoryState
	commits   int
	rollbacks int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: &memoryState{
		accesses: map[int64]Access{},
		roles:    map[int64]Role{},
		links:    map[linkKey]struct{}{},
		users:    map[int64]User{},
	}}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memoryTx{s: work}); err != nil {
		m.rollbacks++
		return err
	}
	m.state = work
	m.commits++
	return nil
}

func (m *memoryStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.users)
}

func (m *memoryStore) linkCount(roleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.state.links {
		if k.roleID == roleID {
			n++
		}
	}
	return n
}

type memoryTx struct {
	s *memoryState
}

func (t *memoryTx) Accesses() AccessRepository         { return memAccessRepo{t.s} }
func (t *memoryTx) Roles() RoleRepository              { return memRoleRepo{t.s} }
func (t *memoryTx) RoleAccesses() RoleAccessRepository { return memLinkRepo{t.s} }
func (t *memoryTx) Users() UserRepository              { return memUserRepo{t.s} }

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type memAccessRepo struct{ s *memoryState }

func (r memAccessRepo) nameTaken(name string, except int64) bool {
	for id, a := range r.s.accesses {
		if a.Name == name && id != except {
			return true
		}
	}
	return false
}

func (r memAccessRepo) Insert(ctx context.Context, access Access) (Access, error) {
	if r.nameTaken(access.Name, 0) {
		return Access{}, fmt.Errorf("%w: access %q already exists", shared.ErrConflict, access.Name)
	}
	now := time.Now()
	access.ID = r.s.id()
	access.CreatedAt, access.UpdatedAt = now, now
	r.s.accesses[access.ID] = access
	return access, nil
}

func (r memAccessRepo) FindByID(ctx context.Context, id int64) (Access, bool, error) {
	a, ok := r.s.accesses[id]
	return a, ok, nil
}

func (r memAccessRepo) FindByName(ctx context.Context, name string) (Access, bool, error) {
	for _, id := range sortedIDs(r.s.accesses) {
		if a := r.s.accesses[id]; a.Name == name {
			return a, true, nil
		}
	}
	return Access{}, false, nil
}

func (r memAccessRepo) Update(ctx context.Context, access Access) (Access, error) {
	current, ok := r.s.accesses[access.ID]
	if !ok {
		return Access{}, fmt.Errorf("%w: access %d", shared.ErrNotFound, access.ID)
	}
	if r.nameTaken(access.Name, access.ID) {
		return Access{}, fmt.Errorf("%w: access %q already exists", shared.ErrConflict, access.Name)
	}
	access.CreatedAt = current.CreatedAt
	access.UpdatedAt = time.Now()
	r.s.accesses[access.ID] = access
	return access, nil
}

func (r memAccessRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.accesses[id]; !ok {
		return fmt.Errorf("%w: access %d", shared.ErrNotFound, id)
	}
	delete(r.s.accesses, id)
	for k := range r.s.links {
		if k.accessID == id {
			delete(r.s.links, k)
		}
	}
	return nil
}

func (r memAccessRepo) filter(keep func(Access) bool) []Access {
	out := []Access{}
	for _, id := range sortedIDs(r.s.accesses) {
		if a := r.s.accesses[id]; keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (r memAccessRepo) List(ctx context.Context) ([]Access, error) {
	return r.filter(func(Access) bool { return true }), nil
}

func (r memAccessRepo) ListByModule(ctx context.Context, module string) ([]Access, error) {
	return r.filter(func(a Access) bool { return a.ModuleName == module }), nil
}

func (r memAccessRepo) ListByActionType(ctx context.Context, actionType string) ([]Access, error) {
	return r.filter(func(a Access) bool { return a.ActionType == actionType }), nil
}

func (r memAccessRepo) ListByRole(ctx context.Context, roleID int64) ([]Access, error) {
	return r.filter(func(a Access) bool {
		_, ok := r.s.links[linkKey{roleID: roleID, accessID: a.ID}]
		return ok
	}), nil
}

func (r memAccessRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.nameTaken(name, 0), nil
}

type memRoleRepo struct{ s *memoryState }

func (r memRoleRepo) nameTaken(name string, except int64) bool {
	for id, role := range r.s.roles {
		if role.Name == name && id != except {
			return true
		}
	}
	return false
}

func (r memRoleRepo) Insert(ctx context.Context, role Role) (Role, error) {
	if r.nameTaken(role.Name, 0) {
		return Role{}, fmt.Errorf("%w: role %q already exists", shared.ErrConflict, role.Name)
	}
	now := time.Now()
	role.ID = r.s.id()
	role.CreatedAt, role.UpdatedAt = now, now
	r.s.roles[role.ID] = role
	return role, nil
}

func (r memRoleRepo) FindByID(ctx context.Context, id int64) (Role, bool, error) {
	role, ok := r.s.roles[id]
	return role, ok, nil
}

func (r memRoleRepo) FindByName(ctx context.Context, name string) (Role, bool, error) {
	for _, id := range sortedIDs(r.s.roles) {
		if role := r.s.roles[id]; role.Name == name {
			return role, true, nil
		}
	}
	return Role{}, false, nil
}

func (r memRoleRepo) Update(ctx context.Context, role Role) (Role, error) {
	current, ok := r.s.roles[role.ID]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, role.ID)
	}
	if r.nameTaken(role.Name, role.ID) {
		return Role{}, fmt.Errorf("%w: role %q already exists", shared.ErrConflict, role.Name)
	}
	role.CreatedAt = current.CreatedAt
	role.UpdatedAt = time.Now()
	r.s.roles[role.ID] = role
	return role, nil
}

func (r memRoleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.roles[id]; !ok {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	for _, u := range r.s.users {
		if u.RoleID == id {
			return fmt.Errorf("%w: role %d in use", shared.ErrConflict, id)
		}
	}
	delete(r.s.roles, id)
	for k := range r.s.links {
		if k.roleID == id {
			delete(r.s.links, k)
		}
	}
	return nil
}

func (r memRoleRepo) List(ctx context.Context) ([]Role, error) {
	out := []Role{}
	for _, id := range sortedIDs(r.s.roles) {
		out = append(out, r.s.roles[id])
	}
	return out, nil
}

func (r memRoleRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.nameTaken(name, 0), nil
}

func (r memRoleRepo) CountUsers(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	for _, u := range r.s.users {
		if u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

type memLinkRepo struct{ s *memoryState }

func (r memLinkRepo) Link(ctx context.Context, roleID, accessID int64) error {
	key := linkKey{roleID: roleID, accessID: accessID}
	if _, ok := r.s.links[key]; ok {
		return fmt.Errorf("%w: access %d already linked to role %d", shared.ErrConflict, accessID, roleID)
	}
	if _, ok := r.s.roles[roleID]; !ok {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, roleID)
	}
	if _, ok := r.s.accesses[accessID]; !ok {
		return fmt.Errorf("%w: access %d", shared.ErrNotFound, accessID)
	}
	r.s.links[key] = struct{}{}
	return nil
}

func (r memLinkRepo) Unlink(ctx context.Context, roleID, accessID int64) error {
	key := linkKey{roleID: roleID, accessID: accessID}
	if _, ok := r.s.links[key]; !ok {
		return fmt.Errorf("%w: access %d not linked to role %d", shared.ErrConflict, accessID, roleID)
	}
	delete(r.s.links, key)
	return nil
}

func (r memLinkRepo) Exists(ctx context.Context, roleID, accessID int64) (bool, error) {
	_, ok := r.s.links[linkKey{roleID: roleID, accessID: accessID}]
	return ok, nil
}

type memUserRepo struct{ s *memoryState }

func (r memUserRepo) taken(match func(User) bool, except int64) bool {
	for id, u := range r.s.users {
		if id != except && match(u) {
			return true
		}
	}
	return false
}

func (r memUserRepo) checkConstraints(u User) error {
	if r.taken(func(o User) bool { return o.Username == u.Username }, u.ID) {
		return fmt.Errorf("%w: username %q already used", shared.ErrConflict, u.Username)
	}
	if r.taken(func(o User) bool { return o.Email == u.Email }, u.ID) {
		return fmt.Errorf("%w: email %q already used", shared.ErrConflict, u.Email)
	}
	if _, ok := r.s.roles[u.RoleID]; !ok {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, u.RoleID)
	}
	return nil
}

func (r memUserRepo) Insert(ctx context.Context, user User) (User, error) {
	if err := r.checkConstraints(user); err != nil {
		return User{}, err
	}
	now := time.Now()
	user.ID = r.s.id()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = user
	return user, nil
}

func (r memUserRepo) FindByID(ctx context.Context, id int64) (User, bool, error) {
	u, ok := r.s.users[id]
	return u, ok, nil
}

func (r memUserRepo) findFirst(match func(User) bool) (User, bool, error) {
	for _, id := range sortedIDs(r.s.users) {
		if u := r.s.users[id]; match(u) {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

func (r memUserRepo) FindByUsername(ctx context.Context, username string) (User, bool, error) {
	return r.findFirst(func(u User) bool { return u.Username == username })
}

func (r memUserRepo) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	return r.findFirst(func(u User) bool { return u.Email == email })
}

func (r memUserRepo) Update(ctx context.Context, user User) (User, error) {
	current, ok := r.s.users[user.ID]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, user.ID)
	}
	user.Username = current.Username
	user.Password = current.Password
	if err := r.checkConstraints(user); err != nil {
		return User{}, err
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now()
	r.s.users[user.ID] = user
	return user, nil
}

func (r memUserRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	delete(r.s.users, id)
	return nil
}

func (r memUserRepo) filter(keep func(User) bool) []User {
	out := []User{}
	for _, id := range sortedIDs(r.s.users) {
		if u := r.s.users[id]; keep(u) {
			out = append(out, u)
		}
	}
	return out
}

func (r memUserRepo) List(ctx context.Context) ([]User, error) {
	return r.filter(func(User) bool { return true }), nil
}

func (r memUserRepo) ListActive(ctx context.Context) ([]User, error) {
	return r.filter(func(u User) bool { return u.IsActive == UserActive }), nil
}

func (r memUserRepo) ListByRole(ctx context.Context, roleID int64) ([]User, error) {
	return r.filter(func(u User) bool { return u.RoleID == roleID }), nil
}

func (r memUserRepo) ListActiveByRole(ctx context.Context, roleID int64) ([]User, error) {
	return r.filter(func(u User) bool { return u.RoleID == roleID && u.IsActive == UserActive }), nil
}

func (r memUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.taken(func(u User) bool { return u.Username == username }, 0), nil
}

func (r memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.taken(func(u User) bool { return u.Email == email }, 0), nil
}

func (r memUserRepo) mutate(id int64, fn func(*User) error) (User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	if err := fn(&u); err != nil {
		return User{}, err
	}
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return u, nil
}

func (r memUserRepo) SetActive(ctx context.Context, id int64, active int) (User, error) {
	return r.mutate(id, func(u *User) error {
		u.IsActive = active
		return nil
	})
}

func (r memUserRepo) SetPassword(ctx context.Context, id int64, password string) (User, error) {
	return r.mutate(id, func(u *User) error {
		u.Password = password
		return nil
	})
}

func (r memUserRepo) SetRole(ctx context.Context, id, roleID int64) (User, error) {
	return r.mutate(id, func(u *User) error {
		if _, ok := r.s.roles[roleID]; !ok {
			return fmt.Errorf("%w: role %d", shared.ErrNotFound, roleID)
		}
		u.RoleID = roleID
		return nil
	})
}

var (
	_ Store = (*memoryStore)(nil)
	_ Tx    = (*memoryTx)(nil)
)
