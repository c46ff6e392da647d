// Package notification moves committed transition events out of the outbox,
// through a Redis stream, to the people who need to hear about them.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
)

const (
	fieldEventID = "event_id"
	fieldAction  = "action"
	fieldSubject = "subject"
	fieldData    = "data"
)

// Publisher hands a committed transition event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TransitionEvent) (string, error)
}

// StreamPublisher appends events to a Redis stream with XADD.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev domain.TransitionEvent) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	logger.ExternalServiceCall("redis", "XADD", "stream", p.stream, "eventID", ev.ID)
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			fieldEventID: ev.ID,
			fieldAction:  string(ev.Action),
			fieldSubject: string(ev.SubjectKind) + ":" + strconv.FormatInt(ev.SubjectID, 10),
			fieldData:    string(data),
		},
	}).Result()
	logger.ExternalServiceResult("redis", "XADD", err, "messageID", id)
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
