package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/msomdec/postwriter/internal/config"
	"github.com/msomdec/postwriter/internal/handler"
	"github.com/msomdec/postwriter/internal/repository/sqlite"
	"github.com/msomdec/postwriter/internal/service"
	"github.com/msomdec/postwriter/internal/writer"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog := setupLogger(cfg)
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("exiting", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func setupLogger(cfg config.Config) (closeLog func()) {
	logOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	}

	closeLog = func() {}
	if cfg.LogFile != "" {
		var file io.WriteCloser = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, logOpts))
		closeLog = func() { file.Close() }
	}

	slog.SetDefault(slog.New(slog.NewMultiHandler(handlers...)))
	return closeLog
}

func run(cfg config.Config) error {
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The writer outlives ctx: it is closed explicitly once the HTTP server
	// has stopped handing it requests.
	w, err := writer.Start(context.WithoutCancel(ctx), writer.Config{
		Path:      cfg.DatabasePath,
		QueueSize: cfg.QueueSize,
		Setup:     sqlite.Setup,
	}, sqlite.InsertPost)
	if err != nil {
		return fmt.Errorf("start writer: %w", err)
	}

	db, err := sqlite.Open(cfg.DatabasePath, cfg.ReadPoolSize)
	if err != nil {
		w.Close()
		return fmt.Errorf("open read pool: %w", err)
	}
	defer db.Close()

	var tokens *service.TokenVerifier
	if cfg.TokenSecret != "" {
		tokens, err = service.NewTokenVerifier(cfg.TokenSecret)
		if err != nil {
			w.Close()
			return err
		}
		slog.Info("token gate enabled for writes")
	}

	var limiter *service.RateLimiter
	if cfg.PostRate > 0 {
		limiter = service.NewRateLimiter(cfg.PostRate, float64(cfg.PostBurst))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.SqlDB, "read"),
		w.Metrics(),
	)

	posts := service.NewPostService(w, db.Posts(), limiter, cfg.CallTimeout)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, posts, w, tokens, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           handler.RequestID(handler.LogRequests(handler.SecurityHeaders(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	ln, err := listen(cfg)
	if err != nil {
		w.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx, 5*time.Minute, 10*time.Minute)
			return nil
		})
	}
	g.Go(func() error {
		var writerErr error
		select {
		case <-gctx.Done():
		case <-w.Done():
			writerErr = errors.New("writer stopped unexpectedly")
		}
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		slog.Info("server stopped")

		// Nothing can enqueue any more; drain what is queued.
		if err := w.Close(); err != nil {
			return fmt.Errorf("close writer: %w", err)
		}
		return writerErr
	})

	err = g.Wait()
	// Covers the paths where the shutdown goroutine returned early.
	if cerr := w.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close writer: %w", cerr)
	}
	return err
}

func listen(cfg config.Config) (net.Listener, error) {
	if cfg.Socket == "" {
		return net.Listen("tcp", cfg.Addr)
	}
	// A stale socket from a previous run blocks bind.
	if err := os.Remove(cfg.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	return net.Listen("unix", cfg.Socket)
}
