// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "haptic-service/docs"
	"haptic-service/internal/config"
	"haptic-service/internal/database"
	"haptic-service/internal/discovery"
	"haptic-service/internal/discovery/emulated"
	"haptic-service/internal/discovery/serial"
	"haptic-service/internal/emulator"
	"haptic-service/internal/portal"
	"haptic-service/internal/protocol"
	"haptic-service/internal/repository"
	"haptic-service/internal/routes"
	"haptic-service/internal/service"
	"haptic-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	router   *routes.Router
	database *database.DB
	migrator *database.Migrator

	registry  *protocol.Registry
	bench     *emulator.Bench
	events    *service.EventBus
	sessions  *service.SessionService
	scanners  *discovery.ScannerManager
	procedure *portal.Procedure

	sessionRepo repository.SessionRepository

	stopBackground context.CancelFunc
}

// @title Haptic Service API
// @version 1.0.0
// @description Control loop and session API for HapticAvatar tool and IBox devices

// @host localhost:8090
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "haptic-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeTransports()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.loadPortals(); err != nil {
		return nil, fmt.Errorf("failed to load portal configuration: %w", err)
	}

	app.initializeDiscovery()
	app.initializeServer()

	return app, nil
}

// initializeDatabase connects the session store and runs migrations.
// Without database.enabled sessions are kept in memory.
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, sessions are kept in memory")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db
	app.migrator = database.NewMigrator(db, app.logger)

	if app.config.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := app.migrator.Up(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates the session repository
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.sessionRepo = repository.NewSessionRepository(app.database, app.logger)
	} else {
		app.sessionRepo = repository.NewMemoryRepository(app.config.Database.MemoryLimit, app.logger)
	}
}

// initializeTransports registers the serial and emulated transports
func (app *Application) initializeTransports() {
	app.registry = protocol.NewRegistry(app.logger)
	app.bench = service.NewEmulatorBench(app.config, app.registry)

	app.logger.Info("Transports initialized",
		zap.Int("transports", len(app.registry.ListTransports())),
		zap.Bool("emulated", app.bench != nil),
	)
}

// initializeServices opens the devices and optionally starts a session
func (app *Application) initializeServices() error {
	app.events = service.NewEventBus(app.logger)
	go app.events.Start()

	app.sessions = service.NewSessionService(app.config, app.registry, app.sessionRepo, app.events, app.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.sessions.Open(ctx); err != nil {
		return fmt.Errorf("failed to open haptic devices: %w", err)
	}

	if app.config.Loop.AutoStart {
		if _, err := app.sessions.StartSession(ctx); err != nil {
			return fmt.Errorf("failed to start haptic session: %w", err)
		}
	}

	app.logger.Info("Services initialized successfully")
	return nil
}

// loadPortals reads the optional procedure file
func (app *Application) loadPortals() error {
	path := app.config.Portal.ConfigFile
	if path == "" {
		return nil
	}

	procedure, err := portal.LoadFile(path)
	if err != nil {
		return err
	}
	app.procedure = procedure

	app.logger.Info("Portal configuration loaded",
		zap.String("procedure", procedure.Name),
		zap.Int("portals", len(procedure.Portals)),
	)
	return nil
}

// initializeDiscovery registers the port scanners. Ports owned by the loop
// are never probed.
func (app *Application) initializeDiscovery() {
	app.scanners = discovery.NewScannerManager(app.logger)

	var inUse []string
	for _, device := range app.sessions.Devices() {
		inUse = append(inUse, device.Port)
	}

	var probe serial.IdentityProbe
	if app.config.Discovery.Probe {
		probe = serial.DriverProbe(app.registry, app.config.Device.Serial.MaxPollCount, app.logger)
	}
	app.scanners.RegisterScanner(serial.NewScanner(app.logger, &serial.Config{
		Probe:        app.config.Discovery.Probe,
		ProbeTimeout: app.config.Discovery.ProbeTimeout,
		InUse:        inUse,
	}, probe))

	if app.bench != nil {
		app.scanners.RegisterScanner(emulated.NewScanner(app.bench))
	}
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.sessions,
		app.scanners,
		app.procedure,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	ctx, cancel := context.WithCancel(context.Background())
	app.stopBackground = cancel

	go app.startCleanupService(ctx)

	app.logger.Info("Background services started")
}

// startCleanupService drops finished sessions older than the retention
func (app *Application) startCleanupService(ctx context.Context) {
	ticker := time.NewTicker(app.config.Database.CleanupInterval)
	defer ticker.Stop()

	retention := app.config.Database.SessionRetention
	app.logger.Info("Cleanup service started",
		zap.Duration("interval", app.config.Database.CleanupInterval),
		zap.Duration("retention", retention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cleanupCtx, cancel := context.WithTimeout(ctx, time.Minute)
		var (
			deleted int64
			err     error
		)
		if app.migrator != nil {
			var n int
			n, err = app.migrator.RunCleanup(cleanupCtx, retention)
			deleted = int64(n)
		} else {
			deleted, err = app.sessions.PurgeSessions(cleanupCtx, retention)
		}
		cancel()

		if err != nil {
			app.logger.Error("Failed to cleanup old sessions", zap.Error(err))
		} else if deleted > 0 {
			app.logger.Info("Cleaned up old sessions", zap.Int64("deleted", deleted))
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown stops the HTTP surface first, then the loop so the device is
// left with zero force, then the stores
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "haptic-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.stopBackground != nil {
		app.stopBackground()
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}
	app.router.Close()

	if err := app.sessions.Close(ctx); err != nil {
		app.logger.Error("Haptic service close error", zap.Error(err))
	}
	app.events.Close()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
