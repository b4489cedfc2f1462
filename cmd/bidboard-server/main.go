package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"bidboard/internal/config"
	"bidboard/internal/grpcapi"
	"bidboard/internal/httpapi"
	"bidboard/internal/snapshot"
	"bidboard/internal/store"
	"bidboard/internal/upstream"
	"bidboard/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/bidboard.yaml"
	if p := os.Getenv("BIDBOARD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath, ".env")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Setup logging.
	var w io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		name := strings.ReplaceAll(cfg.Logging.File, "{date}", time.Now().Format("2006-01-02"))
		logFile, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("opening log file: %v", err)
		}
		defer logFile.Close()
		w = io.MultiWriter(os.Stdout, logFile)
	}
	logger := util.NewLoggerTo(w, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Snapshot service and date index.
	dec, err := snapshot.NewDecoder(cfg.Snapshot.MissingValues, cfg.Snapshot.Encoding)
	if err != nil {
		log.Fatalf("snapshot decoder: %v", err)
	}
	svc := snapshot.NewService(cfg.Snapshot.Dir, dec, cfg.Snapshot.DecodeWorkers, logger)
	idx := snapshot.NewIndex(cfg.Snapshot.Dir, logger)
	if err := idx.Refresh(); err != nil {
		logger.Warn("loading snapshot dates", "dir", cfg.Snapshot.Dir, "error", err)
	}
	logger.Info("snapshot dates loaded", "dir", cfg.Snapshot.Dir, "count", len(idx.Dates()), "latest", idx.Latest())

	// Audit log.
	var rec store.Recorder = store.NewNoopRecorder()
	if cfg.Storage.SQLitePath != "" {
		sr, err := store.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening audit log: %v", err)
		}
		rec = sr
		logger.Info("audit log enabled", "path", cfg.Storage.SQLitePath)
	}
	defer rec.Close()

	up := upstream.NewClient(upstream.Options{
		URLTemplate: cfg.Upstream.URLTemplate,
		Token:       cfg.Upstream.Token,
		DeviceID:    cfg.Upstream.DeviceID,
		UserID:      cfg.Upstream.UserID,
		Timeout:     cfg.Upstream.Timeout,
		Proxy:       cfg.Upstream.Proxy,
		RatePerMin:  cfg.Upstream.RatePerMin,
	})
	if !up.Configured() {
		logger.Warn("API_TOKEN not set, /api/realtime_limit will fail")
	}

	srv := httpapi.NewServer(httpapi.Options{
		Snapshots:      svc,
		Index:          idx,
		Upstream:       up,
		Recorder:       rec,
		PasswordFile:   cfg.Credential.PasswordFile,
		StaticDir:      cfg.Static.Dir,
		StaticIndex:    cfg.Static.Index,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)

	// Start HTTP server.
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Snapshot.Watch {
		go func() {
			if err := idx.Watch(ctx); err != nil {
				logger.Error("snapshot watcher stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Optional gRPC server.
	var gs *grpc.Server
	if addr := cfg.GRPCAddr(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("gRPC listen on %s: %v", addr, err)
		}
		gs = grpcapi.NewServer(svc, idx, logger).NewGRPCServer()
		go func() {
			logger.Info("gRPC server listening", "addr", addr)
			if err := gs.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if gs != nil {
		stopGRPC(shutdownCtx, gs, logger)
	}
}

// stopGRPC drains in-flight RPCs, forcing a stop when ctx expires.
func stopGRPC(ctx context.Context, gs *grpc.Server, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("gRPC graceful stop timed out")
		gs.Stop()
	}
}
