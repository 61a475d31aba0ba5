package scheduler

import (
	"context"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/config"

	"github.com/hibiken/asynq"
)

const defaultQueue = "default"

// TaskScheduler enqueues background work. A nil *Client satisfies it with
// no-ops so callers work without redis configured.
type TaskScheduler interface {
	EnqueueLeadNotification(ctx context.Context, payload LeadNotificationPayload) error
	ScheduleMeetingReminder(ctx context.Context, payload MeetingReminderPayload, runAt time.Time) error
	ScheduleMeetingFollowUp(ctx context.Context, payload MeetingFollowUpPayload, runAt time.Time) error
}

// Client enqueues tasks on the asynq queue.
type Client struct {
	client *asynq.Client
	queue  string
}

var _ TaskScheduler = (*Client)(nil)

// NewClient creates the queue client. Returns nil when redis is not
// configured; the nil client drops all tasks.
func NewClient(cfg config.RedisConfig) *Client {
	if !cfg.IsRedisEnabled() {
		return nil
	}
	return &Client{
		client: asynq.NewClient(redisClientOpt(cfg)),
		queue:  defaultQueue,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueLeadNotification(ctx context.Context, payload LeadNotificationPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewLeadNotificationTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func (c *Client) ScheduleMeetingReminder(ctx context.Context, payload MeetingReminderPayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewMeetingReminderTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

func (c *Client) ScheduleMeetingFollowUp(ctx context.Context, payload MeetingFollowUpPayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewMeetingFollowUpTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

func redisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	}
}
