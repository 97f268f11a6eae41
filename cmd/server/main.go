package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dgallion1/narrator/internal/api"
	"github.com/dgallion1/narrator/internal/config"
	"github.com/dgallion1/narrator/internal/llm"
	"github.com/dgallion1/narrator/internal/pipeline"
	"github.com/dgallion1/narrator/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (default $"+config.EnvConfigFile+")")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log, closeLog, err := cfg.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("opening log file", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := cfg.RequireCredentials(); err != nil {
		log.Error("missing credentials", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "config", cfg.String())

	// Initialize clients.
	voices := pipeline.NewVoices(cfg)
	stats := llm.NewLLMStats(time.Hour)
	factory, err := pipeline.NewFactory(cfg, voices, stats, log)
	if err != nil {
		log.Error("building narrator factory", "error", err)
		os.Exit(1)
	}

	var store storage.Storage
	if cfg.S3Enabled() {
		store, err = storage.NewS3Storage(ctx, cfg.OutputDir, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
	} else {
		store, err = storage.NewLocalStorage(cfg.OutputDir)
	}
	if err != nil {
		log.Error("initializing storage", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL.Std(),
	}, factory, store, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop accepting requests before closing the queue.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()

		if err := voices.Close(); err != nil {
			log.Warn("closing synthesizer", "error", err)
		}
	}()

	log.Info("starting narrator", "port", cfg.Port, "s3", cfg.S3Enabled())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
