// Package notify delivers encounter events to observers outside the engine.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// LogNotifier writes each event as a structured log entry.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier logging at info level through logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("events")}
}

// Publish logs ev. It never fails.
func (n *LogNotifier) Publish(_ context.Context, ev encounter.Event) error {
	fields := []zap.Field{
		zap.String("event", string(ev.Type)),
		zap.String("session_id", ev.SessionID),
		zap.String("kind", string(ev.Kind)),
		zap.String("status", string(ev.Status)),
		zap.Int64("version", ev.Version),
		zap.Time("at", ev.At),
	}
	if ev.ChannelID != "" {
		fields = append(fields, zap.String("channel_id", ev.ChannelID))
	}
	if ev.CharacterID != "" {
		fields = append(fields, zap.String("character_id", ev.CharacterID))
	}
	n.logger.Info("encounter event", fields...)
	return nil
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher returns a publisher writing to channel.
//
// Precondition: channel must be non-empty.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends ev to the configured channel.
//
// Postcondition: Returns nil once Redis has accepted the message, whether or
// not any subscriber received it.
func (p *RedisPublisher) Publish(ctx context.Context, ev encounter.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}

// Fanout delivers every event to each notifier in order and returns the first
// error after all have been tried.
type Fanout []encounter.Notifier

// Publish implements encounter.Notifier.
func (f Fanout) Publish(ctx context.Context, ev encounter.Event) error {
	var first error
	for _, n := range f {
		if err := n.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
