// Command webguide is the conversational web exploration service.
//
// Usage:
//
//	webguide -config webguide.yaml          # serve chat channels + ops HTTP
//	webguide -config webguide.yaml -mcp     # serve MCP tools over stdio
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/webguide/assist"
	"github.com/hazyhaar/webguide/browser"
	"github.com/hazyhaar/webguide/caption"
	"github.com/hazyhaar/webguide/channels"
	"github.com/hazyhaar/webguide/llm"
	"github.com/hazyhaar/webguide/observability"
	"github.com/hazyhaar/webguide/session"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "webguide.yaml", "path to config file")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools over stdio instead of chat channels")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *mcpMode); err != nil {
		logger.Error("webguide: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, mcpMode bool) error {
	cfg, err := assist.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Stealth:          cfg.Browser.Stealth,
		NavTimeout:       cfg.Browser.NavTimeout,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger.With("component", "browser"),
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	driver, err := browser.NewDriver(mgr)
	if err != nil {
		return fmt.Errorf("new driver: %w", err)
	}

	var captioner caption.Captioner
	if cfg.Caption.Endpoint != "" {
		captioner = caption.NewClient(caption.Config{
			Endpoint: cfg.Caption.Endpoint,
			APIKey:   envOr("WEBGUIDE_CAPTION_API_KEY", cfg.Caption.APIKey),
			Timeout:  cfg.Caption.Timeout,
		})
	}

	sess := session.New(session.Config{
		Driver:         driver,
		Captioner:      captioner,
		Logger:         logger.With("component", "session"),
		MatchThreshold: cfg.Match.Threshold,
	})
	defer sess.Close()

	var client llm.Client
	if cfg.LLM.Endpoint != "" {
		llmCfg := cfg.LLM
		llmCfg.APIKey = envOr("WEBGUIDE_LLM_API_KEY", llmCfg.APIKey)
		client = llm.NewOpenAIClient(llmCfg)
	} else {
		logger.Warn("webguide: no llm endpoint configured, falling back to local responses")
	}

	db, err := observability.OpenDB(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("open audit db: %w", err)
	}
	defer db.Close()
	if err := observability.Init(db); err != nil {
		return fmt.Errorf("init audit db: %w", err)
	}
	events := observability.NewEventLogger(db, logger.With("component", "observability"))

	assistant := assist.New(assist.Options{
		Session: sess,
		LLM:     client,
		Events:  events,
		Logger:  logger.With("component", "assist"),
	})

	if mcpMode {
		logger.Info("webguide: serving MCP over stdio", "version", version)
		return assistant.ServeMCP(ctx, version)
	}

	heartbeat := observability.NewHeartbeatWriter(db, "webguide", 15*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	go retentionLoop(ctx, db, events, cfg.Audit.RetentionDays, logger)

	// One browser, one session: handler concurrency is pinned to 1 so
	// commands are processed strictly in arrival order.
	dispatcher := channels.NewDispatcher(assistant.Handler(),
		channels.WithLogger(logger.With("component", "channels")),
		channels.WithMaxConcurrent(1))
	defer dispatcher.Close()

	dispatcher.RegisterPlatform("webhook", channels.WebhookFactory())
	dispatcher.RegisterPlatform("discord", channels.DiscordFactory())

	specs, err := cfg.ChannelSpecs()
	if err != nil {
		return fmt.Errorf("channel specs: %w", err)
	}
	if err := dispatcher.Apply(specs); err != nil {
		return fmt.Errorf("apply channels: %w", err)
	}

	opsErr := make(chan error, 1)
	opsSrv := opsServer(cfg.Ops.Listen, sess, dispatcher, events)
	go func() {
		logger.Info("webguide: ops endpoint listening", "addr", cfg.Ops.Listen)
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			opsErr <- err
		}
	}()

	logger.Info("webguide: started", "version", version, "channels", len(specs))

	select {
	case <-ctx.Done():
	case err := <-opsErr:
		return fmt.Errorf("ops server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opsSrv.Shutdown(shutdownCtx)
	logger.Info("webguide: shutting down")
	return nil
}

// retentionLoop prunes old navigation events and heartbeats once a day.
func retentionLoop(ctx context.Context, db *sql.DB, events *observability.EventLogger, retentionDays int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := events.Cleanup(ctx, retentionDays); err != nil {
				logger.Warn("webguide: event cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("webguide: pruned navigation events", "rows", n)
			}
			if _, err := observability.CleanupHeartbeats(ctx, db, retentionDays); err != nil {
				logger.Warn("webguide: heartbeat cleanup failed", "error", err)
			}
		}
	}
}

// opsServer exposes liveness and session state for operators.
func opsServer(addr string, sess *session.Session, d *channels.Dispatcher, events *observability.EventLogger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		counts, err := events.KindCounts(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			counts = nil
		}
		writeJSON(w, map[string]any{
			"loaded":          sess.Loaded(),
			"url":             sess.CurrentURL(),
			"history_depth":   sess.HistoryDepth(),
			"current_section": sess.CurrentSection(),
			"channels":        d.Active(),
			"commands_24h":    counts,
		})
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		evts, err := events.Query(r.Context(), observability.Filter{Limit: 50})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, evts)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// envOr prefers the environment variable so secrets can stay out of the
// config file.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
