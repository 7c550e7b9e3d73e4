// Package notification delivers member notifications and sends the daily
// goal notification when a member reaches their card goal.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// Sender delivers a notification to a member.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// LogSender writes notifications to the log. It is used when no push
// channel is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. If logger is nil, a default logger will be used.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With(slog.String("component", "notification_sender"))}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, n domain.Notification) error {
	logger.FromContextOrDefault(ctx, s.logger).Info("sending notification",
		slog.Int64("member_id", n.MemberID),
		slog.String("type", string(n.Type)),
		slog.String("title", n.Title),
		slog.String("message", n.Message))
	return nil
}

// RedisPublisher is the part of a go-redis client RedisSender uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSender publishes notifications as JSON on a Redis pub/sub channel,
// where push gateways pick them up.
type RedisSender struct {
	client  RedisPublisher
	channel string
	logger  *slog.Logger
}

// NewRedisSender creates a RedisSender publishing on channel.
func NewRedisSender(client RedisPublisher, channel string, logger *slog.Logger) *RedisSender {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSender{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "notification_sender")),
	}
}

// Send implements Sender.
func (s *RedisSender) Send(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	receivers, err := s.client.Publish(ctx, s.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("notification published",
		slog.Int64("member_id", n.MemberID),
		slog.String("type", string(n.Type)),
		slog.String("channel", s.channel),
		slog.Int64("receivers", receivers))
	return nil
}

// RedisOptions configures DialRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis connects to Redis and checks the connection with a ping.
func DialRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
