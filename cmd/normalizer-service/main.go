package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/hospital-import/pkg/common/config"
	"github.com/synaptica-ai/hospital-import/pkg/common/database"
	"github.com/synaptica-ai/hospital-import/pkg/common/kafka"
	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
	"github.com/synaptica-ai/hospital-import/pkg/importer"
	"github.com/synaptica-ai/hospital-import/pkg/institution"
	"github.com/synaptica-ai/hospital-import/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-import/pkg/store"
)

func main() {
	logger.Init()
	cfg := config.Load()

	registry, err := institution.LoadRegistry(cfg.InstitutionsFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load institutions")
	}
	mode, err := importer.ParseTreatmentMode(cfg.TreatmentMode)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid treatment mode")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to document store")
	}
	defer database.ClosePostgres()

	repo := store.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate document store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := importer.Deps{
		Registry: registry,
		Collections: func(name string) store.Collection {
			return repo.Collection(name)
		},
		Options: importer.Options{
			BatchSize:     cfg.BatchSize,
			TreatmentMode: mode,
			Encoding:      cfg.SourceEncoding,
		},
		ImportDir: cfg.ImportDir,
		// Replaced by the redis lock when enabled.
		Locker: importer.NewLocalLocker(),
	}

	if cfg.ImportLockEnabled {
		client, err := database.GetRedis(ctx)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to lock store")
		}
		defer database.CloseRedis()
		deps.Locker = importer.NewRedisLocker(client, cfg.ImportLockTTL)
	}

	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() {
		events := kafka.NewProducer(cfg.KafkaBrokers, cfg.ImportEventsTopic)
		defer events.Close()
		dlq := kafka.NewProducer(cfg.KafkaBrokers, cfg.ImportDLQTopic)
		defer dlq.Close()
		deps.Events, deps.DLQ = events, dlq

		consumer = kafka.NewConsumer(cfg.KafkaBrokers, cfg.ImportRequestsTopic, cfg.KafkaGroupID)
		defer consumer.Close()
	}

	run := importer.NewRunner(deps)

	if consumer != nil {
		go func() {
			if err := consumer.Consume(ctx, importer.RequestHandler(run)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Fatal("Consumer error")
			}
		}()
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	importer.NewHTTPHandler(registry, run, cfg.MaxRequestBody).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":         cfg.ServerHost,
			"port":         cfg.ServerPort,
			"institutions": registry.Names(),
		}).Info("Normalizer Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Normalizer Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Normalizer Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
