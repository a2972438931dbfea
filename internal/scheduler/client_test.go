package scheduler

import (
	"context"
	"testing"
	"time"

	"dispatch_bot_backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerConfig struct {
	url      string
	insecure bool
	queue    string
}

func (c schedulerConfig) GetRedisURL() string                { return c.url }
func (c schedulerConfig) GetRedisTLSInsecure() bool          { return c.insecure }
func (c schedulerConfig) GetAsynqQueueName() string          { return c.queue }
func (c schedulerConfig) GetAsynqConcurrency() int           { return 0 }
func (c schedulerConfig) GetReminderLeadTime() time.Duration { return 24 * time.Hour }

func TestReminderAtIsOneLeadBeforeTheVisit(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	visit := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, visit.Add(-24*time.Hour), reminderAt(visit, 24*time.Hour, now))
	assert.Equal(t, now, reminderAt(now.Add(2*time.Hour), 24*time.Hour, now), "visits inside the lead are reminded now")
	assert.Equal(t, now, reminderAt(now.Add(-time.Hour), 0, now))
}

func TestReminderTaskIDIsPerAppointment(t *testing.T) {
	assert.Equal(t, "reminder-42", reminderTaskID(42))
	assert.NotEqual(t, reminderTaskID(1), reminderTaskID(2))
}

func TestQueueNameDefaults(t *testing.T) {
	assert.Equal(t, DefaultQueue, queueName(schedulerConfig{}))
	assert.Equal(t, "dispatch", queueName(schedulerConfig{queue: "dispatch"}))
}

func TestConnOpt(t *testing.T) {
	_, err := connOpt(schedulerConfig{})
	assert.Error(t, err)

	opt, err := connOpt(schedulerConfig{url: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Nil(t, opt.TLSConfig)

	opt, err = connOpt(schedulerConfig{url: "redis://cache:6379/0", insecure: true})
	require.NoError(t, err)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	opt, err = connOpt(schedulerConfig{url: "rediss://cache:6379/0"})
	require.NoError(t, err)
	require.NotNil(t, opt.TLSConfig)
	assert.False(t, opt.TLSConfig.InsecureSkipVerify)
}

func TestNilClientEnqueuesNothing(t *testing.T) {
	var c *Client
	assert.NoError(t, c.RemindBefore(context.Background(), domain.Appointment{ID: 1}, "5541999990000"))
	assert.NoError(t, c.Close())
}
