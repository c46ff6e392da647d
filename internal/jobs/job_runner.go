package jobs

import (
	"equiptrack-backend/internal/config"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/notification"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	relay      *notification.Relay
	dispatcher *notification.Dispatcher
	consumer   *notification.StreamConsumer
	config     *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(relay *notification.Relay, dispatcher *notification.Dispatcher, consumer *notification.StreamConsumer, cfg *config.Config) *JobRunner {
	return &JobRunner{
		relay:      relay,
		dispatcher: dispatcher,
		consumer:   consumer,
		config:     cfg,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every job once, relay first so fresh events reach the stream
func (jr *JobRunner) RunAll() {
	jr.RelayOutbox()
	jr.DispatchNotifications()
	jr.PurgePublishedEvents()
}
