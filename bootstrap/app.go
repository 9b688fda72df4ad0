package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"aegis/api"
	"aegis/config"
	"aegis/core"
	"aegis/correlate"
	"aegis/ingest"
	"aegis/notify"
	"aegis/report"
	"aegis/storage"
	"aegis/ticket"

	"go.uber.org/zap"
)

// App represents the aegis application with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	SQLite         *storage.SQLite
	EventStorage   *storage.SQLiteEventStorage
	RuleStorage    *storage.SQLiteRuleStorage
	AlertStorage   *storage.SQLiteAlertStorage
	TicketStorage  *storage.SQLiteTicketStorage
	AnalystStorage *storage.SQLiteAnalystStorage

	// Services
	Notifier      *notify.MultiNotifier
	TicketService *ticket.Service
	Reporter      *report.Reporter
	Engine        *correlate.Engine
	JSONListener  *ingest.JSONListener
	APIServer     *api.API

	// EventCh carries events from the listener into the engine.
	EventCh chan *core.LogEvent

	serviceWg sync.WaitGroup
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("aegis SIEM starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	sqlite, err := storage.NewSQLite(cfg.Storage.SQLitePath, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.SQLite = sqlite

	app.EventStorage = storage.NewSQLiteEventStorage(sqlite, sugar)
	app.RuleStorage = storage.NewSQLiteRuleStorage(sqlite, sugar)
	app.AlertStorage = storage.NewSQLiteAlertStorage(sqlite, sugar)
	app.TicketStorage = storage.NewSQLiteTicketStorage(sqlite, sugar)
	app.AnalystStorage = storage.NewSQLiteAnalystStorage(sqlite, sugar)

	app.Notifier = notify.NewMultiNotifier(notificationConfigs(cfg), sugar)
	app.TicketService = ticket.NewService(app.TicketStorage, app.Notifier, sugar)
	app.Reporter = report.NewReporter(app.EventStorage, app.TicketStorage, sugar)

	app.EventCh = make(chan *core.LogEvent, cfg.Engine.BufferSize)
	app.Engine = correlate.NewEngine(
		app.EventCh,
		app.EventStorage,
		app.RuleStorage,
		app.AlertStorage,
		app.Notifier,
		correlate.EngineConfig{
			WorkerCount:     cfg.Engine.WorkerCount,
			RefreshInterval: cfg.Engine.RefreshInterval,
			CriticalLevel:   cfg.Engine.CriticalLevel,
		},
		sugar,
	)

	return app, nil
}

// Start starts all application services.
func (a *App) Start(ctx context.Context) error {
	if err := a.Engine.Start(); err != nil {
		return fmt.Errorf("failed to start correlation engine: %w", err)
	}
	a.Sugar.Info("Correlation engine started successfully")

	listener, err := ingest.NewJSONListener(
		a.Config.Listeners.JSON.Host,
		a.Config.Listeners.JSON.Port,
		a.Config.Listeners.JSON.RateLimit,
		a.EventCh,
		a.Sugar,
	)
	if err != nil {
		return fmt.Errorf("failed to create JSON listener: %w", err)
	}
	a.JSONListener = listener
	if err := a.JSONListener.Start(); err != nil {
		return fmt.Errorf("failed to start JSON listener: %w", err)
	}

	a.APIServer = api.NewAPI(
		a.EventStorage,
		a.RuleStorage,
		a.AlertStorage,
		a.AnalystStorage,
		a.TicketService,
		a.Reporter,
		a.Engine,
		a.Engine,
		a.Config,
		a.Sugar,
	)

	addr := fmt.Sprintf("%s:%d", a.Config.API.Host, a.Config.API.Port)
	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		a.Sugar.Infof("API server listening on %s", addr)
		if err := a.APIServer.Start(addr); err != nil && err != http.ErrServerClosed {
			a.Sugar.Errorw("API server failed", "error", err)
		}
	}()

	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components. Listeners stop first so no
// new events enter, then the engine drains, then the API and storage close.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	a.Sugar.Info("Phase 1: Stopping event listener...")
	if a.JSONListener != nil {
		a.JSONListener.Stop()
	}

	a.Sugar.Info("Phase 2: Stopping correlation engine...")
	if a.Engine != nil {
		a.Engine.Stop()
	}

	a.Sugar.Info("Phase 3: Stopping API server...")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
	}

	a.Sugar.Info("Phase 4: Waiting for service goroutines to complete...")
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	a.Sugar.Info("Phase 5: Closing database connections...")
	if a.SQLite != nil {
		a.SQLite.Close()
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}

// Run is the full lifecycle: initialize, start, block until a signal, shut
// down.
func Run() error {
	ctx := context.Background()

	app, err := NewApp(ctx)
	if err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return err
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}

// notificationConfigs translates the notification section of the config into
// channel configs for the notifier.
func notificationConfigs(cfg *config.Config) []notify.NotificationConfig {
	var configs []notify.NotificationConfig

	if cfg.Notifications.Email.Enabled {
		configs = append(configs, notify.NotificationConfig{
			Enabled:      true,
			Type:         notify.NotificationEmail,
			SMTPHost:     cfg.Notifications.Email.SMTPHost,
			SMTPPort:     cfg.Notifications.Email.SMTPPort,
			SMTPUsername: cfg.Notifications.Email.SMTPUsername,
			SMTPPassword: cfg.Notifications.Email.SMTPPassword,
			FromAddress:  cfg.Notifications.Email.FromAddress,
			ToAddresses:  cfg.Notifications.Email.ToAddresses,
			MinSeverity:  core.Severity(cfg.Notifications.Email.MinSeverity),
		})
	}

	if cfg.Notifications.Webhook.Enabled {
		configs = append(configs, notify.NotificationConfig{
			Enabled:        true,
			Type:           notify.NotificationWebhook,
			WebhookURL:     cfg.Notifications.Webhook.URL,
			WebhookHeaders: cfg.Notifications.Webhook.Headers,
			MinSeverity:    core.Severity(cfg.Notifications.Webhook.MinSeverity),
		})
	}

	return configs
}
