package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/clients"
	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/db"
	"github.com/FishIT-Mantle/fishit-sub000/internal/handlers"
	"github.com/FishIT-Mantle/fishit-sub000/internal/repository"
	"github.com/FishIT-Mantle/fishit-sub000/internal/router"
	"github.com/FishIT-Mantle/fishit-sub000/internal/services"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const dbMonitorInterval = 30 * time.Second

// ServiceContainer owns every long-lived component of the minter
type ServiceContainer struct {
	Config *config.Config
	Log    *logrus.Logger

	// Database
	DB *gorm.DB

	// Repositories
	MintRepo    repository.MintRecordRepository
	Checkpoints repository.CheckpointStore

	// Chain & external services
	EthClient  *ethclient.Client
	LogReader  *clients.EthLogReader
	Finalizer  *clients.EthChainFinalizer
	Generator  *clients.ImageGeneratorClient
	Publisher  *clients.PinataPublisher
	NATSClient *clients.NATSClient

	// Pipeline
	Hub       *services.WebSocketHub
	Notifier  *services.StatusFanout
	Pipeline  *services.MintPipeline
	Watcher   *services.EventWatcher
	Scheduler *services.RetryScheduler

	// Background tasks
	WatcherTask   *services.PeriodicTask
	RetryTask     *services.PeriodicTask
	DBMonitorTask *services.PeriodicTask

	Server *http.Server
}

// NewServiceContainer opens the database and the checkpoint store. Commands
// that only read records stop here; the rest call InitPipeline.
func NewServiceContainer(cfg *config.Config, log *logrus.Logger) (*ServiceContainer, error) {
	log.Info("🚀 Initializing Service Container...")

	c := &ServiceContainer{Config: cfg, Log: log}
	if err := c.initRepositories(); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	return c, nil
}

func (c *ServiceContainer) initRepositories() error {
	log := c.Log
	log.Info("📦 Initializing Repositories...")

	gdb, err := db.Open(c.Config.Database, log)
	if err != nil {
		return err
	}
	c.DB = gdb
	c.MintRepo = repository.NewMintRecordRepository(gdb)

	switch c.Config.Checkpoint.Backend {
	case config.CheckpointBackendBadger:
		store, err := repository.OpenBadgerCheckpointStore(c.Config.Checkpoint.BadgerDir, log)
		if err != nil {
			return err
		}
		c.Checkpoints = store
	default:
		c.Checkpoints = repository.NewCheckpointRepository(gdb)
	}

	log.WithField("checkpoint_backend", c.Config.Checkpoint.Backend).Info("✅ Repositories initialized")
	return nil
}

// InitPipeline dials the chain and wires the stage clients, the pipeline,
// the watcher and the retry scheduler
func (c *ServiceContainer) InitPipeline(ctx context.Context) error {
	cfg := c.Config
	log := c.Log
	log.Info("🔧 Initializing pipeline services...")

	eth, err := clients.DialEthClient(ctx, cfg.Chain, log)
	if err != nil {
		return err
	}
	c.EthClient = eth

	c.LogReader, err = clients.NewEthLogReader(eth, cfg.Chain.ContractAddress, log)
	if err != nil {
		return err
	}
	c.Finalizer, err = clients.NewEthChainFinalizer(eth, cfg.Chain, log)
	if err != nil {
		return err
	}
	log.WithField("signer", c.Finalizer.From().Hex()).Info("✅ Chain clients initialized")

	c.Generator = clients.NewImageGeneratorClient(cfg.Generator)
	c.Publisher = clients.NewPinataPublisher(cfg.Storage)

	c.initEventServices()

	c.Pipeline, err = services.NewMintPipeline(c.MintRepo, c.Generator, c.Publisher, c.Finalizer, c.Notifier, log)
	if err != nil {
		return err
	}
	c.Watcher = services.NewEventWatcher(c.LogReader, c.Checkpoints, c.Pipeline, cfg.Watcher, log)
	c.Scheduler = services.NewRetryScheduler(c.MintRepo, c.Pipeline, cfg.Retry, log)

	c.WatcherTask = services.NewPeriodicTask("event_watcher", cfg.Watcher.PollInterval(), func(ctx context.Context) error {
		_, err := c.Watcher.Poll(ctx)
		return err
	}, log)
	c.WatcherTask.RunOnStart = true
	c.WatcherTask.Timeout = cfg.Watcher.Timeout()

	c.RetryTask = services.NewPeriodicTask("retry_sweep", cfg.Retry.Interval(), func(ctx context.Context) error {
		_, err := c.Scheduler.Sweep(ctx)
		return err
	}, log)
	c.RetryTask.RunOnStart = true
	c.RetryTask.Timeout = cfg.Retry.Timeout()

	c.DBMonitorTask = services.NewPeriodicTask("db_monitor", dbMonitorInterval, func(ctx context.Context) error {
		return db.Ping(ctx, c.DB)
	}, log)

	log.Info("✅ Pipeline services initialized")
	return nil
}

// initEventServices NATS is optional: a missing URL or a failed connect
// leaves only the websocket feed
func (c *ServiceContainer) initEventServices() {
	c.Hub = services.NewWebSocketHub(c.Log)

	var publisher services.EventPublisher
	if c.Config.NATS.URL != "" {
		natsClient, err := clients.NewNATSClient(c.Config.NATS, c.Log)
		if err != nil {
			c.Log.WithError(err).Warn("⚠️ NATS unavailable, status events go to websocket clients only")
		} else {
			c.NATSClient = natsClient
			publisher = natsClient
		}
	}

	c.Notifier = services.NewStatusFanout(publisher, c.Hub, c.Config.NATS.SubjectPrefix, c.Log)
}

// InitServer builds the ops HTTP server. Requires InitPipeline.
func (c *ServiceContainer) InitServer() error {
	if c.Pipeline == nil {
		return errors.New("pipeline not initialized")
	}

	if c.Config.Server.GinMode != "" {
		gin.SetMode(c.Config.Server.GinMode)
	}

	engine := router.SetupRouter(router.Handlers{
		Health: handlers.NewHealthHandler(func(ctx context.Context) error {
			return db.Ping(ctx, c.DB)
		}, c.Watcher),
		Mints:           handlers.NewMintHandler(c.MintRepo, c.Pipeline, c.Log),
		Ops:             handlers.NewOpsHandler(c.Scheduler, c.Watcher, c.Log),
		AdminAuth:       handlers.NewAdminAuthHandler(c.Config.Admin, c.Log),
		WebSocket:       handlers.NewWebSocketHandler(c.Hub, c.Log),
		AdminAllowedIPs: c.Config.Admin.AllowedIPs,
	}, c.Log)

	c.Server = &http.Server{
		Addr:              c.Config.Server.Address(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Start launches the background tasks and, when built, the HTTP server.
// Server failures are reported on the returned channel.
func (c *ServiceContainer) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)

	for _, task := range []*services.PeriodicTask{c.DBMonitorTask, c.WatcherTask, c.RetryTask} {
		if task != nil {
			task.Start(ctx)
		}
	}

	if c.Server != nil {
		go func() {
			c.Log.WithField("addr", c.Server.Addr).Info("🌐 Ops server listening")
			if err := c.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("ops server: %w", err)
			}
		}()
	}
	return errCh
}

// Stop shuts the HTTP server down and waits for in-flight task runs
func (c *ServiceContainer) Stop(ctx context.Context) {
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			c.Log.WithError(err).Warn("⚠️ Ops server shutdown failed")
		}
	}
	for _, task := range []*services.PeriodicTask{c.WatcherTask, c.RetryTask, c.DBMonitorTask} {
		if task != nil {
			task.Stop()
		}
	}
}

// Cleanup releases connections. Safe on a partly initialized container.
func (c *ServiceContainer) Cleanup() {
	c.Log.Info("🧹 Cleaning up Service Container...")

	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.EthClient != nil {
		c.EthClient.Close()
	}
	if c.Checkpoints != nil {
		if err := c.Checkpoints.Close(); err != nil {
			c.Log.WithError(err).Warn("⚠️ Failed to close checkpoint store")
		}
	}
	if c.DB != nil {
		if err := db.Close(c.DB); err != nil {
			c.Log.WithError(err).Warn("⚠️ Failed to close database")
		}
	}

	c.Log.Info("✅ Service Container cleaned up")
}
