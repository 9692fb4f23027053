// reviewd is the collaborative review server. It owns the authoritative
// annotation store and serves it to review clients over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/framepoint/annotate/internal/config"
	"github.com/framepoint/annotate/internal/database"
	"github.com/framepoint/annotate/internal/dispatcher"
	"github.com/framepoint/annotate/internal/logging"
	"github.com/framepoint/annotate/internal/monitor"
	intOtel "github.com/framepoint/annotate/internal/otel"
	"github.com/framepoint/annotate/internal/store"
	"github.com/framepoint/annotate/internal/store/memory"
	sqlitestore "github.com/framepoint/annotate/internal/store/sqlite"
	"github.com/framepoint/annotate/internal/store/ws"
	"github.com/framepoint/annotate/internal/telemetry"
)

var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	ServiceName string = "reviewd"
)

var (
	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	configDir := flag.String("config", ".", "directory containing annotate.cfg.json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", ServiceName, Version, BuildDate)
		return
	}

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	if err := config.Load(configDir); err != nil {
		return err
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	logFile, err := os.Create(logging.LogFilePath(logsDir, ServiceName, SessionStartTime))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	OTelProvider, err = setupOTel(logsDir)
	if err != nil {
		return fmt.Errorf("initializing OTel: %w", err)
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(ServiceName, logFile, viper.GetString("logLevel"), OTelProvider.LoggerProvider())
	Logger = SlogManager.Logger()
	Logger.Info("Starting reviewd", "version", Version, "buildDate", BuildDate)

	zlog := zerolog.New(logFile).With().Timestamp().Logger()

	st, err := openStore(zlog)
	if err != nil {
		return err
	}
	if err := st.Init(); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer st.Close()

	hub := ws.NewHub(st, viper.GetString("hub.secret"), Logger)

	// Event and monitor logs carry the hub's live load.
	loadLogger := slog.New(logging.NewContextHandler(Logger.Handler(), func() []slog.Attr {
		s := hub.Stats()
		return []slog.Attr{slog.Int("clients", s.Clients), slog.Int("videos", s.Videos)}
	}))

	events, err := dispatcher.New(logging.NewDispatcherLogger(loadLogger))
	if err != nil {
		return fmt.Errorf("creating event dispatcher: %w", err)
	}
	hub.SetEvents(events)

	tel := setupTelemetry(zlog, logsDir, events)
	if tel != nil {
		defer tel.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	mon := monitor.NewService(monitor.Dependencies{
		Logger:     loadLogger,
		StatusPath: filepath.Join(logsDir, "status.json"),
		HubStats: func() (int, int) {
			s := hub.Stats()
			return s.Clients, s.Videos
		},
	})
	if err := mon.Start(); err != nil {
		Logger.Error("Status monitor failed to start", "error", err)
	}
	defer mon.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              viper.GetString("hub.listenAddr"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Info("Listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		Logger.Info("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Logger.Error("HTTP shutdown failed", "error", err)
	}

	if err := OTelProvider.Shutdown(shutdownCtx); err != nil {
		Logger.Error("OTel shutdown failed", "error", err)
	}
	return nil
}

// setupOTel builds the OTel provider from configuration. When disabled, the
// provider is a no-op.
func setupOTel(logsDir string) (*intOtel.Provider, error) {
	cfg := intOtel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  ServiceName,
		BatchTimeout: 5 * time.Second,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
	if cfg.Enabled {
		otelFile, err := os.Create(filepath.Join(logsDir, ServiceName+".otel.log"))
		if err != nil {
			return nil, err
		}
		cfg.LogWriter = otelFile
	}
	return intOtel.New(cfg)
}

// openStore selects the persistence backend. The gorm-backed store serves
// both Postgres and SQLite; the database manager handles the fallback when
// the shared database is unreachable.
func openStore(zlog zerolog.Logger) (store.Store, error) {
	storeCfg := config.GetStoreConfig()
	switch storeCfg.Backend {
	case "memory":
		Logger.Info("Using in-memory store, sessions will not persist")
		return memory.New(), nil

	case "sqlite":
		Logger.Info("Using SQLite store", "path", storeCfg.SQLite.Path)
		return sqlitestore.New(sqlitestore.Config{Path: storeCfg.SQLite.Path})

	case "ws":
		return nil, fmt.Errorf("reviewd is the ws backend's server and cannot also be its client")

	case "postgres":
		dbm := database.NewManager(zlog)
		dbm.SqliteFilePath = storeCfg.SQLite.Path
		if err := dbm.Connect(); err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if dbm.ShouldSaveLocal {
			Logger.Warn("Shared database unreachable, serving from local SQLite")
		}
		return sqlitestore.NewWithDB(dbm.DB), nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", storeCfg.Backend)
	}
}

// setupTelemetry connects the metrics writer and subscribes it to hub events.
// Returns nil when telemetry is disabled.
func setupTelemetry(zlog zerolog.Logger, logsDir string, events *dispatcher.Dispatcher) *telemetry.Manager {
	if !viper.GetBool("influx.enabled") {
		return nil
	}

	backupPath := filepath.Join(logsDir, ServiceName+".metrics.gz")
	tel := telemetry.NewManager(zlog, backupPath)
	if err := tel.Connect(); err != nil {
		Logger.Error("Telemetry disabled", "error", err)
		return nil
	}

	mutation := func(op string) dispatcher.HandlerFunc {
		return func(e dispatcher.Event) (any, error) {
			return nil, tel.RecordMutation(e.VideoID, op, e.Count, e.Rejected)
		}
	}
	for topic, op := range map[string]string{
		dispatcher.TopicAnnotationCreated: "create_annotation",
		dispatcher.TopicAnnotationUpdated: "update_annotations",
		dispatcher.TopicAnnotationDeleted: "delete_annotations",
		dispatcher.TopicCommentCreated:    "create_comment",
		dispatcher.TopicCommentMoved:      "move_comment",
		dispatcher.TopicCommentResolved:   "resolve_comment",
		dispatcher.TopicCommentDeleted:    "delete_comments",
	} {
		events.Register(topic, mutation(op), dispatcher.Buffered(1024))
	}
	events.Register(dispatcher.TopicSnapshotPublished, func(e dispatcher.Event) (any, error) {
		return nil, tel.RecordSnapshot(e.VideoID, e.Count, 0)
	}, dispatcher.Buffered(1024))

	return tel
}
