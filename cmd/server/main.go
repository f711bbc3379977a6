package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"photoshare/internal/auth"
	"photoshare/internal/blob"
	"photoshare/internal/config"
	"photoshare/internal/db"
	"photoshare/internal/events"
	"photoshare/internal/logging"
	"photoshare/internal/metrics"
	"photoshare/internal/models"
	"photoshare/internal/server"
	"photoshare/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELServiceName, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	database, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	store := models.NewStore(database)
	defer store.Close()

	var blobs blob.Store
	storageDir := ""
	switch cfg.StorageDriver {
	case "minio":
		m, err := blob.NewMinIO(blob.MinIOConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			return err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return err
		}
		blobs = m
	default:
		d, err := blob.NewDisk(cfg.StorageDir)
		if err != nil {
			return err
		}
		blobs = d
		storageDir = d.Root
	}

	var publisher events.Publisher = events.Nop{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher = events.NewKafka(brokers, cfg.KafkaTopic, log)
	}
	defer publisher.Close()

	srv := server.New(server.Deps{
		Store:         store,
		Blobs:         blobs,
		Tokens:        auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, store),
		Hasher:        auth.NewHasher(cfg.BcryptCost),
		Events:        publisher,
		Metrics:       metrics.New(),
		Logger:        log,
		PublicBaseURL: cfg.PublicBaseURL,
		ImageBaseURL:  cfg.StoragePublicURL,
		CORSOrigins:   cfg.Origins(),
		StorageDir:    storageDir,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(srv, "photoshare"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "db": cfg.DBDriver, "storage": cfg.StorageDriver}).Info("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(c)
}
