package jobs

import (
	"context"

	"equiptrack-backend/internal/logger"
)

// RelayOutbox publishes committed transition events to the Redis stream
func (jr *JobRunner) RelayOutbox() {
	jr.runWithRecovery("RelayOutbox", func() {
		ctx := context.Background()

		total := 0
		for {
			n, err := jr.relay.RelayPending(ctx)
			if err != nil {
				logger.Error("Failed to relay outbox", "published", total, "error", err)
				return
			}
			total += n
			// a short batch means nothing publishable is left
			if n < jr.config.Notification.RelayBatchSize {
				break
			}
		}

		logger.Info("Relayed transition events", "count", total)
	})
}

// DispatchNotifications drains the stream and emails the affected people
func (jr *JobRunner) DispatchNotifications() {
	jr.runWithRecovery("DispatchNotifications", func() {
		ctx := context.Background()

		if err := jr.consumer.EnsureGroup(ctx); err != nil {
			logger.Error("Failed to prepare consumer group", "error", err)
			return
		}

		batch := int64(jr.config.Notification.RelayBatchSize)
		total := 0
		for {
			n, err := jr.dispatcher.Drain(ctx, jr.consumer, batch)
			if err != nil {
				logger.Error("Failed to drain notification stream", "handled", total, "error", err)
				return
			}
			total += n
			if n == 0 {
				break
			}
		}

		logger.Info("Dispatched notifications", "count", total)
	})
}

// PurgePublishedEvents removes published outbox rows past the retention window
func (jr *JobRunner) PurgePublishedEvents() {
	jr.runWithRecovery("PurgePublishedEvents", func() {
		ctx := context.Background()

		n, err := jr.relay.Purge(ctx, jr.config.Retention())
		if err != nil {
			logger.Error("Failed to purge published events", "error", err)
			return
		}

		logger.Info("Purged published events", "count", n)
	})
}
