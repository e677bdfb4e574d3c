package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"securitysystem/internal/alarm"
	"securitysystem/internal/api"
	"securitysystem/internal/auth"
	"securitysystem/internal/bridge"
	"securitysystem/internal/config"
	"securitysystem/internal/effects"
	"securitysystem/internal/sensor"
	"securitysystem/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const defaultConfigPath = "config.yaml"

func main() {
	// Load environment variables before the config so overrides apply
	envErr := godotenv.Load()

	configPath := os.Getenv("SECURITYSYSTEM_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	logger.Info("Starting security system",
		zap.String("config", configPath),
		zap.String("default_mode", cfg.Alarm.DefaultMode),
		zap.Bool("proxy_mode", cfg.ProxyMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Security system failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}

	return zc.Build()
}

// run wires every component, blocks until ctx is done and shuts everything
// down in reverse order
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Persistence
	var (
		store     *storage.Store
		saver     *storage.Saver
		persister alarm.Persister
		restored  *alarm.PersistedState
	)
	if cfg.Persistence.Enabled {
		var err error
		store, err = storage.Open(cfg.Persistence.Path)
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}
		defer store.Close()

		ps, err := store.LoadState(ctx)
		switch {
		case err == nil:
			restored = &ps
		case errors.Is(err, storage.ErrNotFound):
			logger.Info("No persisted state, starting from default mode")
		default:
			logger.Warn("Failed to load persisted state", zap.Error(err))
		}

		saver = storage.NewSaver(store, logger)
		persister = saver
	}

	// Collaborators. The controller is created after the dispatcher, so
	// the websocket hub reads snapshots through this variable.
	var ctrl *alarm.Controller
	var collaborators []effects.Collaborator

	if cfg.Audio.Enabled {
		collaborators = append(collaborators, effects.NewAudio(cfg.Audio, logger))
	}

	commands := effects.NewCommands(cfg.Commands, cfg.ProxyMode, logger)
	collaborators = append(collaborators, commands)

	if cfg.Webhooks.BaseURL != "" {
		collaborators = append(collaborators, effects.NewWebhooks(cfg.Webhooks, cfg.ProxyMode, logger))
	}

	var history *effects.History
	if cfg.InfluxDB.Enabled {
		history = effects.NewHistory(cfg.InfluxDB, logger)
		collaborators = append(collaborators, history)
	}

	var hub *api.Hub
	if cfg.Server.Enabled {
		hub = api.NewHub(func() alarm.Snapshot { return ctrl.Snapshot() }, logger)
		collaborators = append(collaborators, hub)
	}

	var mqttBridge *bridge.Bridge
	if cfg.MQTT.Enabled {
		b, err := bridge.Connect(cfg.MQTT, logger)
		if err != nil {
			// the alarm keeps working without the host automation system
			logger.Error("MQTT bridge unavailable", zap.Error(err))
		} else {
			mqttBridge = b
			collaborators = append(collaborators, b)
		}
	}

	dispatcher := effects.NewDispatcher(logger, collaborators...)

	// Controller
	var err error
	ctrl, err = alarm.NewController(cfg.Alarm, dispatcher, persister, nil, logger)
	if err != nil {
		dispatcher.Close()
		return fmt.Errorf("create controller: %w", err)
	}

	if restored != nil {
		if err := ctrl.Restore(*restored); err != nil {
			logger.Warn("Ignoring persisted state", zap.Error(err))
		}
	}

	if mqttBridge != nil {
		if err := mqttBridge.Attach(ctrl, ctrl.Snapshot()); err != nil {
			logger.Error("Failed to announce MQTT bridge", zap.Error(err))
		}
	}

	// Local inputs
	var (
		router  *sensor.Router
		watcher *sensor.Watcher
	)
	if cfg.GPIO.Enabled {
		router, err = sensor.NewRouter(cfg.GPIO, ctrl, nil, logger)
		if err != nil {
			logger.Error("Invalid GPIO inputs", zap.Error(err))
		} else {
			watcher = sensor.NewWatcher(cfg.GPIO, router, logger)
			if err := watcher.Start(); err != nil {
				logger.Error("Failed to start GPIO inputs", zap.Error(err))
				watcher = nil
			}
		}
	}

	// Remote control surface
	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server, ctrl, auth.NewGuard(cfg.Server.Code), hub, logger)
		if err := server.Start(); err != nil {
			logger.Error("Failed to start HTTP API", zap.Error(err))
			server = nil
		}
	}

	snap := ctrl.Snapshot()
	logger.Info("Security system running",
		zap.String("current_mode", snap.CurrentMode.String()),
		zap.String("target_mode", snap.TargetMode.String()))

	<-ctx.Done()
	logger.Info("Shutting down")

	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Error("Failed to stop HTTP API", zap.Error(err))
		}
	}
	if watcher != nil {
		watcher.Close()
	}
	if router != nil {
		router.Close()
	}

	ctrl.Close()
	dispatcher.Close()
	commands.Wait()

	if mqttBridge != nil {
		mqttBridge.Close()
	}
	if history != nil {
		history.Close()
	}
	if saver != nil {
		saver.Close()
	}

	return nil
}
