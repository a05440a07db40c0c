package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/synaptica-ai/hospital-import/pkg/common/config"
	"github.com/synaptica-ai/hospital-import/pkg/common/database"
	"github.com/synaptica-ai/hospital-import/pkg/common/kafka"
	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
	"github.com/synaptica-ai/hospital-import/pkg/importer"
	"github.com/synaptica-ai/hospital-import/pkg/institution"
	"github.com/synaptica-ai/hospital-import/pkg/store"
)

const usage = "usage: hospital-import [patients.csv treatments.csv]"

func main() {
	logger.Init()
	cfg := config.Load()

	if err := run(cfg, os.Args[1:]); err != nil {
		logger.Log.WithError(err).Error("Import failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, args []string) error {
	files, err := resolveFiles(cfg, args)
	if err != nil {
		return err
	}
	mode, err := importer.ParseTreatmentMode(cfg.TreatmentMode)
	if err != nil {
		return err
	}

	registry, err := institution.LoadRegistry(cfg.InstitutionsFile)
	if err != nil {
		return fmt.Errorf("load institutions: %w", err)
	}
	adapter, err := registry.Lookup(cfg.Institution)
	if err != nil {
		return err
	}

	db, err := database.GetPostgres()
	if err != nil {
		return fmt.Errorf("connect document store: %w", err)
	}
	defer database.ClosePostgres()

	repo := store.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate document store: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var events, dlq importer.Publisher
	if cfg.KafkaEnabled() {
		eventsProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.ImportEventsTopic)
		defer eventsProducer.Close()
		dlqProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.ImportDLQTopic)
		defer dlqProducer.Close()
		events, dlq = eventsProducer, dlqProducer
	}

	var locker importer.Locker
	if cfg.ImportLockEnabled {
		client, err := database.GetRedis(ctx)
		if err != nil {
			return fmt.Errorf("connect lock store: %w", err)
		}
		defer database.CloseRedis()
		locker = importer.NewRedisLocker(client, cfg.ImportLockTTL)
	}

	imp := importer.NewImporter(adapter, repo.Collection(adapter.Name()), events, dlq, locker, importer.Options{
		BatchSize:     cfg.BatchSize,
		TreatmentMode: mode,
		Encoding:      cfg.SourceEncoding,
	})
	summary, err := imp.Run(ctx, files)
	if err != nil {
		return err
	}

	for _, f := range summary.Files {
		logger.Log.WithFields(map[string]interface{}{
			"kind":          f.Kind,
			"file":          f.Path,
			"rows":          f.Rows,
			"stubs_created": f.StubsCreated,
			"duration":      f.Duration.String(),
		}).Info("File summary")
	}
	return nil
}

// resolveFiles takes the two paths from the command line, falling back to
// PATIENTS_FILE and TREATMENTS_FILE.
func resolveFiles(cfg *config.Config, args []string) (importer.Files, error) {
	switch len(args) {
	case 0:
		if cfg.PatientsFile == "" || cfg.TreatmentsFile == "" {
			return importer.Files{}, fmt.Errorf("no input files given\n%s", usage)
		}
		return importer.Files{Patients: cfg.PatientsFile, Treatments: cfg.TreatmentsFile}, nil
	case 2:
		return importer.Files{Patients: args[0], Treatments: args[1]}, nil
	default:
		return importer.Files{}, fmt.Errorf("expected 2 file arguments, got %d\n%s", len(args), usage)
	}
}
