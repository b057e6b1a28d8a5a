package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"replay-manager/internal/media"
	"replay-manager/internal/platform/config"
	"replay-manager/internal/platform/logger"
	"replay-manager/internal/platform/metrics"
	"replay-manager/internal/replay"
)

const shutdownTimeout = 10 * time.Second

type serverFlags struct {
	addr             string
	dataFile         string
	folder           string
	ffmpeg           string
	ffprobe          string
	logLevel         string
	logFormat        string
	logFile          string
	actionQueueSize  int
	highlightTimeout time.Duration
	probeTimeout     time.Duration
	metrics          bool
}

func main() {
	_ = config.Load()

	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var f serverFlags

	cmd := &cobra.Command{
		Use:           "replay-server",
		Short:         "Replay clip library manager and player bridge",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	defaultAddr := net.JoinHostPort(
		config.GetEnv("HOST", "127.0.0.1"),
		strconv.Itoa(config.GetEnvInt("PORT", 8765)),
	)
	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", defaultAddr, "listen address")
	flags.StringVar(&f.dataFile, "data-file", config.GetEnv("DATA_FILE", "replay_manager_data.json"), "metadata document path")
	flags.StringVar(&f.folder, "folder", config.GetEnv("REPLAY_FOLDER", ""), "replay folder (overrides the persisted setting)")
	flags.StringVar(&f.ffmpeg, "ffmpeg", config.GetEnv("FFMPEG_PATH", "ffmpeg"), "ffmpeg binary")
	flags.StringVar(&f.ffprobe, "ffprobe", config.GetEnv("FFPROBE_PATH", "ffprobe"), "ffprobe binary")
	flags.StringVar(&f.logLevel, "log-level", config.GetEnv("LOG_LEVEL", "info"), "debug, info, warn or error")
	flags.StringVar(&f.logFormat, "log-format", config.GetEnv("LOG_FORMAT", "json"), "json or text")
	flags.StringVar(&f.logFile, "log-file", config.GetEnv("LOG_FILE", ""), "also write logs to this rotated file")
	flags.IntVar(&f.actionQueueSize, "action-queue-size", config.GetEnvInt("ACTION_QUEUE_SIZE", replay.DefaultActionQueueSize), "pending player actions kept")
	flags.DurationVar(&f.highlightTimeout, "highlight-timeout", config.GetEnvDuration("HIGHLIGHT_TIMEOUT", replay.DefaultHighlightTimeout), "highlights concatenation timeout")
	flags.BoolVar(&f.metrics, "metrics", config.GetEnvBool("METRICS_ENABLED", true), "serve Prometheus metrics on /metrics")
	flags.DurationVar(&f.probeTimeout, "probe-timeout", config.GetEnvDuration("PROBE_TIMEOUT", media.DefaultProbeTimeout), "duration probe timeout")

	return cmd
}

func run(f serverFlags) error {
	log := logger.New(logger.Options{
		Level:      f.logLevel,
		Format:     f.logFormat,
		File:       f.logFile,
		MaxSizeMB:  config.GetEnvInt("LOG_MAX_SIZE_MB", 10),
		MaxBackups: config.GetEnvInt("LOG_MAX_BACKUPS", 3),
		MaxAgeDays: config.GetEnvInt("LOG_MAX_AGE_DAYS", 28),
	})

	ff := media.NewFFmpeg(f.ffmpeg, f.ffprobe)
	ff.ProbeTimeout = f.probeTimeout
	ff.ConcatTimeout = f.highlightTimeout
	if !ff.Available() {
		log.Warn("ffmpeg or ffprobe not found; durations, thumbnails and highlights are unavailable",
			"ffmpeg", f.ffmpeg, "ffprobe", f.ffprobe)
	}

	thumbs, err := media.NewThumbnailCache(ff, config.GetEnvInt("THUMBNAIL_CACHE_SIZE", media.DefaultThumbnailCacheSize))
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	var met *metrics.Metrics
	if f.metrics {
		met = metrics.New()
	}
	svc := replay.NewService(replay.Options{
		FS:               fs,
		Store:            replay.NewFileStore(fs, f.dataFile),
		Durations:        media.NewDurationCache(ff, log),
		Concat:           ff,
		Logger:           log,
		Metrics:          met,
		Folder:           f.folder,
		Version:          buildVersion(),
		ActionQueueSize:  f.actionQueueSize,
		HighlightTimeout: f.highlightTimeout,
		WarmWorkers:      config.GetEnvInt("PROBE_WORKERS", media.DefaultWarmWorkers),
	})
	defer svc.Close()

	res := svc.Rescan()
	log.Info("library loaded", "folder", res.Library.Folder, "count", res.Library.Len())

	h := replay.NewHandler(svc, thumbs, log, met)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	if met != nil {
		r.Method(http.MethodGet, "/metrics", met.Handler(func() {
			met.SetLibraryEntries(svc.Library().Len())
			met.SetQueueLength(svc.QueueLen())
		}))
	}
	h.Register(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.Run(ctx)

	srv := &http.Server{Addr: f.addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("server starting",
		"addr", f.addr,
		"data_file", f.dataFile,
		"action_queue_size", f.actionQueueSize,
		"log_level", f.logLevel,
	)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped")
	return nil
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return "dev"
	}
	return version
}
