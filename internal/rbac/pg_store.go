package rbac

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-iam/internal/platform/db"
)

// PGStore is the PostgreSQL backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store over the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, newPGTx(tx))
	})
}

type pgTx struct {
	accesses     *AccessRepo
	roles        *RoleRepo
	roleAccesses *RoleAccessRepo
	users        *UserRepo
}

func newPGTx(conn db.DBTX) *pgTx {
	return &pgTx{
		accesses:     NewAccessRepo(conn),
		roles:        NewRoleRepo(conn),
		roleAccesses: NewRoleAccessRepo(conn),
		users:        NewUserRepo(conn),
	}
}

func (t *pgTx) Accesses() AccessRepository         { return t.accesses }
func (t *pgTx) Roles() RoleRepository              { return t.roles }
func (t *pgTx) RoleAccesses() RoleAccessRepository { return t.roleAccesses }
func (t *pgTx) Users() UserRepository              { return t.users }

// rowScanner is satisfied by pgx.Row and pgx.CollectableRow.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

var (
	_ Store = (*PGStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
