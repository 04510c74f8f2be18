// main package for the adstudy API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/audiopanel/adstudy/internal/api"
	"github.com/audiopanel/adstudy/internal/config"
	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/lifecycle"
	"github.com/audiopanel/adstudy/internal/objectstore"
	"github.com/audiopanel/adstudy/internal/qc"
	"github.com/audiopanel/adstudy/internal/signing"
	"github.com/audiopanel/adstudy/internal/store"
	"github.com/audiopanel/adstudy/internal/tts"
	"github.com/audiopanel/adstudy/internal/worker"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "adstudy-server.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	records, closeRecords, err := buildRecordStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeRecords()

	blobs, natsConnection, err := buildBlobStore(cfg, log)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	signer, err := signing.New(cfg.Signing.Secret, cfg.HTTP.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("failed to create URL signer: %w", err)
	}

	synthesizer := tts.NewClient(
		cfg.TTS.ServiceURL,
		cfg.TTS.Voice,
		cfg.TTS.Temperature,
		cfg.TTSTimeout(),
	)

	batch := lifecycle.New(records, blobs, synthesizer, log).
		WithBatchCap(cfg.Batch.Cap).
		WithDelay(cfg.BatchDelay())
	qcEngine := qc.New(records, blobs, signer, log)

	startWorker(ctx, cfg, natsConnection, batch, log)

	router := api.NewRouter(api.Deps{
		Records:    records,
		Blobs:      blobs,
		QCEngine:   qcEngine,
		Batch:      batch,
		Signer:     signer,
		Log:        log,
		AdminToken: cfg.HTTP.AdminToken,
		URLTTL:     cfg.SignedURLTTL(),
	})

	mux := http.NewServeMux()
	router.Register(mux)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		log.System("adstudy server listening on %s", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("failed to shut down server: %w", shutdownErr)
		}

		return nil
	case serveErr := <-errCh:
		return fmt.Errorf("server stopped: %w", serveErr)
	}
}

// buildRecordStore opens the SQLite store when a path is configured and
// falls back to the in-memory store for local development.
func buildRecordStore(cfg *config.Config, log *logger.Logger) (core.RecordStore, func(), error) {
	if cfg.Store.SQLitePath == "" {
		log.Warn("No sqlite_path configured, using in-memory record store")

		return store.NewMemoryStore(), func() {}, nil
	}

	sqlStore, err := store.OpenSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record store: %w", err)
	}

	closeStore := func() {
		closeErr := sqlStore.Close()
		if closeErr != nil {
			log.Error("Failed to close record store: %v", closeErr)
		}
	}

	return sqlStore, closeStore, nil
}

// buildBlobStore connects to NATS JetStream when a URL is configured and
// falls back to the in-memory store otherwise.
func buildBlobStore(cfg *config.Config, log *logger.Logger) (core.BlobStore, *nats.Conn, error) {
	if cfg.NATS.URL == "" {
		log.Warn("No NATS URL configured, using in-memory audio store")

		return objectstore.NewMemoryStore(), nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	blobs, err := objectstore.New(jetstreamContext, cfg.NATS.AudioBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to open audio bucket: %w", err)
	}

	log.Info("Audio object store ready: bucket=%s", cfg.NATS.AudioBucket)

	return blobs, natsConnection, nil
}

// startWorker subscribes the batch worker when NATS and a subject are
// configured.
func startWorker(
	ctx context.Context,
	cfg *config.Config,
	natsConnection *nats.Conn,
	batch *lifecycle.Engine,
	log *logger.Logger,
) {
	if natsConnection == nil || cfg.NATS.RunBatchSubject == "" {
		return
	}

	batchWorker := worker.NewNatsWorker(natsConnection, cfg.NATS.RunBatchSubject, batch, log)

	go func() {
		workerErr := batchWorker.Run(ctx)
		if workerErr != nil {
			log.Error("Batch worker stopped: %v", workerErr)
		}
	}()

	log.Info("Batch worker listening on subject: %s", cfg.NATS.RunBatchSubject)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
