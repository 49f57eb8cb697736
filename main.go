package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"adspace-booking/cmd"
	"adspace-booking/internal/data/repository"
	"adspace-booking/internal/data/repository/memstore"
	"adspace-booking/internal/events"
	"adspace-booking/internal/gateway"
	"adspace-booking/internal/lock"
	"adspace-booking/internal/scheduler"
	"adspace-booking/internal/usecase"
	"adspace-booking/internal/wire"
	"adspace-booking/pkg/database"
	"adspace-booking/pkg/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Name, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("store", config.App.StoreDriver),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := utils.SystemClock()

	repos, closeStore := newRepository(config, clock, logger)
	defer closeStore()

	locker, closeLocker := newLocker(ctx, config, logger)
	defer closeLocker()

	publisher := newPublisher(config, logger)
	defer publisher.Close()

	deps := usecase.Deps{
		Gateway:   newGateway(config, logger),
		Verifier:  gateway.NewSignatureVerifier(config.Razorpay.KeySecret, config.Razorpay.WebhookSecret),
		Locker:    locker,
		Publisher: publisher,
		Clock:     clock,
	}

	// Wire all dependencies
	app := wire.Wiring(repos, deps, config, logger)

	sched := newScheduler(app.Service.Reconciliation, locker, config, logger)
	if sched != nil {
		sched.Start(ctx)
	}

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	stop()
	if sched != nil {
		sched.Wait()
	}
	logger.Info("Application stopped")
}

func newRepository(config *utils.Config, clock utils.Clock, logger *zap.Logger) (*repository.Repository, func()) {
	if config.App.StoreDriver == utils.StoreDriverMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memstore.New(clock).Repository(), func() {}
	}

	if err := database.Migrate(config.Database, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	return repository.NewRepository(db, logger), db.Close
}

func newLocker(ctx context.Context, config *utils.Config, logger *zap.Logger) (lock.Locker, func()) {
	if !config.Redis.Enabled {
		logger.Info("Redis disabled; booking locks are process-local")
		return lock.NewMemoryLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", config.Redis.Addr))
	}
	logger.Info("Redis connected", zap.String("addr", config.Redis.Addr))

	return lock.NewRedisLocker(client, config.App.Name+":"), func() { client.Close() }
}

func newPublisher(config *utils.Config, logger *zap.Logger) events.Publisher {
	if !config.Kafka.Enabled {
		return events.Noop{}
	}
	logger.Info("Publishing booking events to kafka",
		zap.Strings("brokers", config.Kafka.Brokers),
		zap.String("topic", config.Kafka.Topic))
	return events.NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.Topic, logger)
}

func newGateway(config *utils.Config, logger *zap.Logger) gateway.Gateway {
	if config.Razorpay.KeyID == "" || config.Razorpay.KeySecret == "" {
		logger.Warn("Razorpay keys not set; using sandbox gateway")
		return gateway.NewSandbox()
	}
	return gateway.NewRazorpay(config.Razorpay.KeyID, config.Razorpay.KeySecret, config.Razorpay.Timeout, logger)
}

func newScheduler(rec usecase.ReconciliationService, locker lock.Locker, config *utils.Config, logger *zap.Logger) *scheduler.Scheduler {
	if !config.Scheduler.Enabled {
		logger.Info("In-process scheduler disabled; rely on /api/cron endpoints")
		return nil
	}

	interval := config.Scheduler.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	sched := scheduler.New(locker, logger)
	sched.Register(scheduler.Task{
		Name:     "cancel-unpaid",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := rec.CancelUnpaid(ctx)
			return err
		},
	})
	sched.Register(scheduler.Task{
		Name:     "advance-lifecycle",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, _, err := rec.AdvanceLifecycle(ctx)
			return err
		},
	})
	return sched
}
