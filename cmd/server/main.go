package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruralpay/escrow/internal/audit"
	"github.com/ruralpay/escrow/internal/config"
	"github.com/ruralpay/escrow/internal/custody"
	"github.com/ruralpay/escrow/internal/database"
	"github.com/ruralpay/escrow/internal/events"
	"github.com/ruralpay/escrow/internal/handlers"
	"github.com/ruralpay/escrow/internal/identity"
	"github.com/ruralpay/escrow/internal/logger"
	"github.com/ruralpay/escrow/internal/metrics"
	mW "github.com/ruralpay/escrow/internal/middleware"
	"github.com/ruralpay/escrow/internal/pricing"
	"github.com/ruralpay/escrow/internal/services"
	"github.com/ruralpay/escrow/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load(".env")
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit journal
	var sink audit.Sink
	if cfg.Database.Enabled {
		db, err := database.InitDB(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()

		journal := audit.NewPostgresJournal(db)
		if err := journal.Migrate(ctx); err != nil {
			log.Fatal("Failed to migrate audit journal", zap.Error(err))
		}
		sink = journal
	}

	// Identity registry and custody bridge
	var (
		ids      identity.Registry = identity.NewMemoryRegistry()
		sender   custody.Sender    = custody.NewMemoryQueue()
		revoked  mW.Revocations    = mW.NewMemoryRevocations()
		listener *custody.DepositListener
	)
	redisClient := database.InitRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
		ids = identity.NewRedisRegistry(redisClient, cfg.IdentityKey)
		sender = custody.NewRedisQueue(redisClient, cfg.Queues.Transfers)
		revoked = mW.NewRedisRevocations(redisClient)
		listener = custody.NewDepositListener(redisClient, cfg.Queues.Deposits, cfg.Queues.DeadLetter, sender, log.Named("custody"))
	} else {
		log.Warn("Redis unavailable, using in-process collaborators")
	}

	// Offer events
	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer publisher.Close()

	feed := pricing.NewMemoryFeed()
	m := metrics.New()

	engine := services.NewEngine(services.Deps{
		Store:          store.New(),
		Params:         config.DefaultParams(cfg),
		Identity:       ids,
		Prices:         feed,
		Publisher:      feed,
		Custody:        sender,
		Audit:          audit.NewAuditLogger(log, sink),
		Events:         publisher,
		Metrics:        m,
		Logger:         log,
		Operator:       cfg.Operator,
		CustodyAccount: cfg.Custody,
	})

	if listener != nil {
		go listener.Run(ctx, engine.ReceiveDeposit)
	}

	r := handlers.NewRouter(engine, mW.NewAuthenticator(cfg.JWTSecret, revoked), m)

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr), zap.String("operator", cfg.Operator))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Server stopped")
}
