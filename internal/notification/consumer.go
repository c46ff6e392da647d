package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
)

// Message is one stream entry decoded back into its transition event.
type Message struct {
	ID    string
	Event domain.TransitionEvent
}

// StreamConsumer reads a Redis stream as a member of a consumer group.
type StreamConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	// block < 0 returns immediately when nothing is pending.
	block time.Duration
}

func NewStreamConsumer(client *redis.Client, stream, group, consumer string) *StreamConsumer {
	return &StreamConsumer{client: client, stream: stream, group: group, consumer: consumer, block: -1}
}

// WithBlock makes Read wait up to d for new entries.
func (c *StreamConsumer) WithBlock(d time.Duration) *StreamConsumer {
	c.block = d
	return c
}

// EnsureGroup creates the stream and the consumer group if they do not exist.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Read returns up to count new entries for this consumer. Entries that cannot
// be decoded are acknowledged and dropped.
func (c *StreamConsumer) Read(ctx context.Context, count int64) ([]Message, error) {
	logger.ExternalServiceCall("redis", "XREADGROUP", "stream", c.stream, "group", c.group)
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	logger.ExternalServiceResult("redis", "XREADGROUP", err)
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", c.stream, err)
	}

	var out []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			ev, err := decodeEvent(m.Values)
			if err != nil {
				logger.Warn("Dropping undecodable stream entry", "stream", s.Stream, "messageID", m.ID, "error", err)
				if ackErr := c.Ack(ctx, m.ID); ackErr != nil {
					return out, ackErr
				}
				continue
			}
			out = append(out, Message{ID: m.ID, Event: ev})
		}
	}
	return out, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", c.stream, err)
	}
	return nil
}

func decodeEvent(values map[string]interface{}) (domain.TransitionEvent, error) {
	var ev domain.TransitionEvent
	raw, ok := values[fieldData].(string)
	if !ok {
		return ev, fmt.Errorf("missing %q field", fieldData)
	}
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
