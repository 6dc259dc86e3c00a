package rbac

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// AuditPort records mutations after they commit.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OperationObserver receives the outcome of every service operation.
type OperationObserver interface {
	ObserveOperation(service, operation string, err error, elapsed time.Duration)
}

// Notifier delivers account change events to the user concerned.
type Notifier interface {
	NotifyUser(ctx context.Context, event UserEvent) error
}

// Deps carries the collaborators shared by the RBAC services. Only Store is required.
type Deps struct {
	Store    Store
	Audit    AuditPort
	Metrics  OperationObserver
	Notifier Notifier
	Logger   *slog.Logger
}

// base runs each operation inside its own transaction and handles the
// best-effort side effects that follow a commit.
type base struct {
	name string
	deps Deps
}

func newBase(name string, deps Deps) base {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return base{name: name, deps: deps}
}

func (b base) run(ctx context.Context, op string, fn func(context.Context, Tx) error) error {
	start := time.Now()
	err := b.deps.Store.WithTx(ctx, fn)
	if b.deps.Metrics != nil {
		b.deps.Metrics.ObserveOperation(b.name, op, err, time.Since(start))
	}
	return err
}

func (b base) recordAudit(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if b.deps.Audit == nil {
		return
	}
	err := b.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil {
		b.deps.Logger.Warn("record audit", slog.String("action", action), slog.Int64("entity_id", entityID), slog.Any("error", err))
	}
}
