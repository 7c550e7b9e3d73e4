package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/service/notification"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis records published messages.
type fakeRedis struct {
	channel string
	message any
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func goalNotification() domain.Notification {
	return domain.Notification{
		MemberID: 9,
		Title:    "Daily goal achieved!",
		Message:  "Great work!",
		Type:     domain.NotificationGoalAchieved,
		SentAt:   clock,
	}
}

func TestRedisSender_PublishesJSON(t *testing.T) {
	t.Parallel()

	client := &fakeRedis{}
	sender := notification.NewRedisSender(client, "caro:notifications", nil)

	require.NoError(t, sender.Send(context.Background(), goalNotification()))
	assert.Equal(t, "caro:notifications", client.channel)

	payload, ok := client.message.([]byte)
	require.True(t, ok)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, float64(9), decoded["memberId"])
	assert.Equal(t, "GOAL_ACHIEVED", decoded["type"])
	assert.Equal(t, "Daily goal achieved!", decoded["title"])
	assert.Equal(t, "2024-01-15T09:30:00Z", decoded["sentAt"])
}

func TestRedisSender_PublishError(t *testing.T) {
	t.Parallel()

	errDown := errors.New("connection refused")
	sender := notification.NewRedisSender(&fakeRedis{err: errDown}, "caro:notifications", nil)

	err := sender.Send(context.Background(), goalNotification())
	assert.ErrorIs(t, err, errDown)
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	log, buffer := logger.NewTestLogger(t)
	sender := notification.NewLogSender(log)

	require.NoError(t, sender.Send(context.Background(), goalNotification()))

	entry, found := logger.FindLogEntry(t, buffer, "sending notification")
	require.True(t, found)
	assert.Equal(t, float64(9), entry["member_id"])
	assert.Equal(t, "GOAL_ACHIEVED", entry["type"])
	assert.Equal(t, "notification_sender", entry["component"])
}
