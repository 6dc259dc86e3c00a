package rbac

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
	_ "github.com/odyssey-erp/odyssey-iam/testing"
)

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type observation struct {
	service   string
	operation string
	err       error
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (o *recordingObserver) ObserveOperation(service, operation string, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{service: service, operation: operation, err: err})
}

func (o *recordingObserver) last() observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.obs) == 0 {
		return observation{}
	}
	return o.obs[len(o.obs)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []UserEvent
	err    error
}

func (n *recordingNotifier) NotifyUser(ctx context.Context, event UserEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) kinds() []UserEventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]UserEventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

var errStoreDown = errors.New("store down")

// failingStore fails every transaction before fn runs.
type failingStore struct{}

func (failingStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return errStoreDown
}

type fixture struct {
	store    *memoryStore
	audit    *recordingAudit
	observer *recordingObserver
	notifier *recordingNotifier
	access   *AccessService
	roles    *RoleService
	users    *UserService
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemoryStore(),
		audit:    &recordingAudit{},
		observer: &recordingObserver{},
		notifier: &recordingNotifier{},
	}
	deps := Deps{Store: f.store, Audit: f.audit, Metrics: f.observer, Notifier: f.notifier}
	f.access = NewAccessService(deps)
	f.roles = NewRoleService(deps)
	f.users = NewUserService(deps)
	return f
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
