package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"equiptrack-backend/internal/config"
	"equiptrack-backend/internal/jobs"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/notification"
	"equiptrack-backend/internal/repository/postgres"
	"equiptrack-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'relay-outbox', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	logger.Info("Starting Equiptrack Cronjob Runner...", "log_level", cfg.Log.Level)

	if cfg.Database.Store != config.StorePostgres {
		log.Fatalf("Cronjob runner needs the postgres store, got %q", cfg.Database.Store)
	}

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Redis
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Error("Failed to ping redis", "error", err, "addr", cfg.Redis.Addr)
		log.Fatalf("Failed to ping redis: %v", err)
	}

	// Initialize Repositories
	store := postgres.NewStore(db, postgres.Options{Isolation: sql.LevelReadCommitted, LockTimeout: cfg.LockTimeout()})

	// Initialize notification pipeline
	var sender notification.EmailSender = notification.LogSender{}
	if cfg.Notification.SendGridAPIKey != "" {
		sender = notification.NewSendGridSender(cfg.Notification.SendGridAPIKey, cfg.Notification.FromEmail, cfg.Notification.FromName)
	} else {
		logger.Warn("No SendGrid API key configured; emails are logged only")
	}
	relay := notification.NewRelay(store.Outbox(), notification.NewStreamPublisher(client, cfg.Redis.Stream), cfg.Notification.RelayBatchSize, cfg.Notification.MaxAttempts)
	dispatcher := notification.NewDispatcher(sender, store.Requests(), cfg.Notification.Audiences, cfg.Notification.UserEmails)
	consumer := notification.NewStreamConsumer(client, cfg.Redis.Stream, cfg.Redis.Group, cfg.Redis.Consumer)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(relay, dispatcher, consumer, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "relay-outbox":
		jobRunner.RelayOutbox()
	case "dispatch-notifications":
		jobRunner.DispatchNotifications()
	case "purge-published-events":
		jobRunner.PurgePublishedEvents()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - relay-outbox\n")
		fmt.Printf("  - dispatch-notifications\n")
		fmt.Printf("  - purge-published-events\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
