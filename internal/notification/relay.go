package notification

import (
	"context"
	"time"

	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/repository"
)

// Relay publishes pending outbox events after their transaction committed.
// A failed publish is recorded on the event and retried on a later run until
// maxAttempts is reached; it never touches the workflow state.
type Relay struct {
	outbox      repository.OutboxRepository
	publisher   Publisher
	batchSize   int
	maxAttempts int
}

func NewRelay(outbox repository.OutboxRepository, publisher Publisher, batchSize, maxAttempts int) *Relay {
	return &Relay{outbox: outbox, publisher: publisher, batchSize: batchSize, maxAttempts: maxAttempts}
}

// RelayPending publishes one batch and reports how many events went out.
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	events, err := r.outbox.ListPending(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, ev := range events {
		if _, err := r.publisher.Publish(ctx, ev); err != nil {
			logger.Warn("Failed to publish transition event", "eventID", ev.ID, "attempts", ev.Attempts+1, "error", err)
			if markErr := r.outbox.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
				return published, markErr
			}
			continue
		}
		if err := r.outbox.MarkPublished(ctx, ev.ID, time.Now().UTC()); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

// Purge deletes events published before now minus retention.
func (r *Relay) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return r.outbox.PurgePublished(ctx, time.Now().UTC().Add(-retention))
}
