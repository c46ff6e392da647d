package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	api "equiptrack-backend/internal/api/grpc"
	"equiptrack-backend/internal/api/grpc/interceptor"
	httpapi "equiptrack-backend/internal/api/http"
	"equiptrack-backend/internal/config"
	"equiptrack-backend/internal/jobs"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/notification"
	"equiptrack-backend/internal/repository"
	"equiptrack-backend/internal/repository/memory"
	"equiptrack-backend/internal/repository/postgres"
	"equiptrack-backend/internal/scheduler"
	"equiptrack-backend/internal/security"
	"equiptrack-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	logger.Info("Starting Equiptrack Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "http_address", cfg.GetHTTPAddress())

	// Initialize store
	var (
		store repository.Store
		ping  func(context.Context) error
	)
	switch cfg.Database.Store {
	case config.StoreMemory:
		logger.Warn("Using in-memory store; data is lost on restart")
		store = memory.NewStore()
	default:
		db := openDatabase(cfg)
		defer db.Close()
		store = postgres.NewStore(db, postgresOptions(cfg))
		ping = db.PingContext
	}

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.AccessTokenTTL())
	authInterceptor := interceptor.NewAuthInterceptor(tokenManager)

	// Initialize Services
	var policy service.AdminApprovalPolicy = service.RequireAdminApproval
	if cfg.Workflow.AdminWaiverBelowCents > 0 {
		logger.Info("Admin approval waived below budget", "cents", cfg.Workflow.AdminWaiverBelowCents)
		policy = service.WaiveAdminApprovalBelow(cfg.Workflow.AdminWaiverBelowCents)
	}
	ledger := service.NewLedger(store, cfg.Workflow.HistoryPageSize)
	workflow := service.NewWorkflow(
		service.NewApprovalService(store, ledger, policy),
		service.NewEquipmentService(store, ledger),
		service.NewAssignmentService(store, ledger),
		ledger,
	)

	// The in-memory outbox is only visible to this process, so relay it here.
	var cronScheduler *scheduler.Scheduler
	if cfg.Database.Store == config.StoreMemory && cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cronScheduler = scheduler.NewScheduler(newJobRunner(cfg, store, client))
		cronScheduler.Start()
	}

	// Set up gRPC server
	lis, err := net.Listen("tcp", cfg.GetServerAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetServerAddress())
		log.Fatalf("Failed to listen: %v", err)
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(authInterceptor.Unary()),
		grpc.ChainStreamInterceptor(authInterceptor.Stream()),
	)

	// Register services
	api.RegisterWorkflowServer(s, api.NewWorkflowHandler(workflow))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Register reflection service for grpcurl
	reflection.Register(s)

	// Set up HTTP server for health and read endpoints
	var httpServer *http.Server
	if addr := cfg.GetHTTPAddress(); addr != "" {
		httpServer = &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewHandler(workflow, tokenManager, ping).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "address", addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", "address", cfg.GetServerAddress())
		if err := s.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	healthServer.Shutdown()
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}
	s.GracefulStop()
	if cronScheduler != nil {
		cronScheduler.Stop()
	}
	logger.Info("Server stopped. Goodbye!")
}

func openDatabase(cfg *config.Config) *sql.DB {
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(context.Background(), db); err != nil {
			logger.Error("Failed to apply migrations", "error", err)
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}
	return db
}

func postgresOptions(cfg *config.Config) postgres.Options {
	opts := postgres.Options{Isolation: sql.LevelReadCommitted, LockTimeout: cfg.LockTimeout()}
	if cfg.Database.Isolation == config.IsolationSerializable {
		opts.Isolation = sql.LevelSerializable
	}
	return opts
}

func newJobRunner(cfg *config.Config, store repository.Store, client *redis.Client) *jobs.JobRunner {
	var sender notification.EmailSender = notification.LogSender{}
	if cfg.Notification.SendGridAPIKey != "" {
		sender = notification.NewSendGridSender(cfg.Notification.SendGridAPIKey, cfg.Notification.FromEmail, cfg.Notification.FromName)
	}
	relay := notification.NewRelay(store.Outbox(), notification.NewStreamPublisher(client, cfg.Redis.Stream), cfg.Notification.RelayBatchSize, cfg.Notification.MaxAttempts)
	dispatcher := notification.NewDispatcher(sender, store.Requests(), cfg.Notification.Audiences, cfg.Notification.UserEmails)
	consumer := notification.NewStreamConsumer(client, cfg.Redis.Stream, cfg.Redis.Group, cfg.Redis.Consumer)
	return jobs.NewJobRunner(relay, dispatcher, consumer, cfg)
}
