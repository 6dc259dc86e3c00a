package cli

import (
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-iam/jobs"
)

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual inspection helpers for the notification queue.
type JobsCLI struct {
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	return &JobsCLI{inspector: asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	if c == nil || c.inspector == nil {
		return nil
	}
	return c.inspector.Close()
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListPendingNotifications returns queued user notifications, oldest first.
func (c *JobsCLI) ListPendingNotifications(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListPendingTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if t.Type == jobs.TaskUserNotify {
			out = append(out, t)
		}
	}
	return out, nil
}
