// Package scheduler delays appointment reminders through asynq. The API
// enqueues one reminder per booked visit and cmd/scheduler delivers it.
package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// DefaultQueue is used when ASYNQ_QUEUE is empty.
const DefaultQueue = "reminders"

const reminderMaxRetry = 5

// Client enqueues reminders. A nil Client enqueues nothing.
type Client struct {
	client *asynq.Client
	queue  string
	lead   time.Duration
	now    func() time.Time
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := connOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
		lead:   cfg.GetReminderLeadTime(),
		now:    time.Now,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// RemindBefore schedules the reminder for appt one lead time before the visit.
// Visits closer than the lead time are reminded right away. Booking the same
// appointment twice keeps the first reminder.
func (c *Client) RemindBefore(ctx context.Context, appt domain.Appointment, to string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewAppointmentReminderTask(AppointmentReminderPayload{AppointmentID: appt.ID, To: to})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(reminderAt(appt.ScheduledAt, c.lead, c.now())),
		asynq.Queue(c.queue),
		asynq.TaskID(reminderTaskID(appt.ID)),
		asynq.MaxRetry(reminderMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue reminder for appointment %d: %w", appt.ID, err)
	}
	return nil
}

func reminderAt(scheduledAt time.Time, lead time.Duration, now time.Time) time.Time {
	if at := scheduledAt.Add(-lead); at.After(now) {
		return at
	}
	return now
}

func reminderTaskID(appointmentID int64) string {
	return fmt.Sprintf("reminder-%d", appointmentID)
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return DefaultQueue
}

// connOpt builds the asynq connection from REDIS_URL. REDIS_TLS_INSECURE
// skips certificate checks, turning TLS on for plain redis:// URLs.
func connOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	if cfg.GetRedisURL() == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	tlsConfig := opt.TLSConfig
	if cfg.GetRedisTLSInsecure() {
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		} else {
			tlsConfig = tlsConfig.Clone()
		}
		tlsConfig.InsecureSkipVerify = true
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
