package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"neviweb-go-home/internal/coordinator"
	"neviweb-go-home/internal/metrics"
	"neviweb-go-home/internal/neviweb"
	"neviweb-go-home/internal/notify"
	"neviweb-go-home/internal/store"
	"neviweb-go-home/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	args := os.Args[1:]
	discover := len(args) > 0 && args[0] == "discover"
	if discover {
		args = args[1:]
	}
	cfgPath := "config.yaml"
	if len(args) > 0 {
		cfgPath = args[0]
	}

	// .env is optional.
	_ = godotenv.Load()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if discover {
		if err := runDiscover(cfg, logger); err != nil {
			logger.Error("discover", "err", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("neviweb-go-home starting", "version", version)

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	client := newClient(cfg, db, logger)

	events := coordinator.NewEventBus(logger)
	sinks := []notify.Sink{notify.EventSink(events)}
	if cfg.Ntfy.Topic != "" {
		sinks = append(sinks, notify.NewNtfy(cfg.Ntfy.Server, cfg.Ntfy.Topic, cfg.Ntfy.Priority))
	}
	window, _ := cfg.dedupWindow()
	notifier := notify.New("Neviweb130 integration "+version, window, logger, sinks...)
	notifier.Start()
	defer notifier.Stop()

	coord := coordinator.New(client, db, events, coordinator.Config{
		ScanInterval: time.Duration(cfg.Neviweb.ScanInterval) * time.Second,
		StatInterval: time.Duration(cfg.Neviweb.StatInterval) * time.Second,
		HomekitMode:  cfg.Neviweb.HomekitMode,
		Notifier:     notifier,
	}, logger)

	// Discovery logs in and lists the networks, which can take a while.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(cfg.Neviweb.RequestTimeout)*time.Second)
	if err := coord.Start(ctx); err != nil {
		logger.Error("start coordinator", "err", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(coord, notifier, cfg, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(coord),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Start web server
	webOpts := []web.ServerOption{
		web.WithVersion(version),
		web.WithMetrics(registry),
	}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, autoWebOpts...)

	webServer := web.NewServer(coord, logger, webOpts...)

	// No WriteTimeout: /ws and /api/events are long-lived.
	httpServer := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           webServer,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(coord, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	webServer.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	coord.Stop()

	logger.Info("goodbye")
}

func newClient(cfg *Config, sessions neviweb.SessionStore, logger *slog.Logger) *neviweb.Client {
	return neviweb.NewClient(neviweb.Config{
		BaseURL:  cfg.Neviweb.BaseURL,
		Username: cfg.Neviweb.Username,
		Password: cfg.Neviweb.Password,
		Networks: cfg.Neviweb.Networks,
		Timeout:  time.Duration(cfg.Neviweb.RequestTimeout) * time.Second,
	}, sessions, logger)
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
