package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-iam/internal/jobs"
	"github.com/odyssey-erp/odyssey-iam/internal/rbac"
)

// Deliverer hands a user event to whatever channel reaches the user.
type Deliverer interface {
	Deliver(ctx context.Context, event rbac.UserEvent) error
}

// LogDeliverer writes the notice to the worker log. It is the default until a
// mail transport exists.
type LogDeliverer struct {
	Logger *slog.Logger
}

// Deliver implements Deliverer.
func (d LogDeliverer) Deliver(ctx context.Context, event rbac.UserEvent) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "user notification",
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
		slog.Int64("user_id", event.UserID),
		slog.String("email", event.Email),
	)
	return nil
}

// UserNotifyJob processes TaskUserNotify tasks.
type UserNotifyJob struct {
	Deliverer Deliverer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewUserNotifyJob wires dependencies for the notification handler.
func NewUserNotifyJob(deliverer Deliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *UserNotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	if deliverer == nil {
		deliverer = LogDeliverer{Logger: logger}
	}
	return &UserNotifyJob{Deliverer: deliverer, Logger: logger, Metrics: metrics}
}

// Handle decodes the payload and delivers the event. Malformed payloads are
// not retried.
func (j *UserNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Deliverer == nil {
		return errors.New("user notify: handler not configured")
	}
	var payload UserNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.Logger.Warn("user notify: bad payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if payload.Event.UserID == 0 || payload.Event.Kind == "" {
		j.Logger.Warn("user notify: incomplete event", slog.String("event_id", payload.Event.ID))
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskUserNotify)
	defer func() {
		err = tracker.End(err)
	}()
	if err = j.Deliverer.Deliver(ctx, payload.Event); err != nil {
		j.Logger.Error("user notify: deliver", slog.String("event_id", payload.Event.ID), slog.Any("error", err))
		return err
	}
	return nil
}
