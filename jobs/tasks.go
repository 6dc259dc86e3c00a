package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-iam/internal/rbac"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUserNotify delivers an account change notice to the affected user.
	TaskUserNotify = "iam:user-notify"
)

// UserNotifyPayload is the task body of TaskUserNotify.
type UserNotifyPayload struct {
	Event rbac.UserEvent `json:"event"`
}

// NewUserNotifyTask builds a notification task. The event id doubles as the
// task id so a retried enqueue is not processed twice.
func NewUserNotifyTask(event rbac.UserEvent) (*asynq.Task, error) {
	if event.ID == "" {
		return nil, errors.New("jobs: user event without id")
	}
	body, err := json.Marshal(UserNotifyPayload{Event: event})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUserNotify, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(event.ID),
		asynq.MaxRetry(3),
	), nil
}
