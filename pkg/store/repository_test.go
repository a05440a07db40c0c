package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/hospital-import/pkg/common/config"
	"github.com/synaptica-ai/hospital-import/pkg/common/database"
	"github.com/synaptica-ai/hospital-import/pkg/record"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// dryRunDB renders postgres statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestUpsertPatientQueryMergesDocument(t *testing.T) {
	db := dryRunDB(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &PatientDocumentModel{
		Institution: "hospital1",
		PatientKey:  "7",
		Document:    datatypes.JSONMap{"id": int64(7), "patient_id": int64(7), "first_name": "Ann"},
		Treatments:  datatypes.JSON("[]"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return upsertPatientQuery(tx, rec)
	})

	for _, want := range []string{
		`INSERT INTO "patient_documents"`,
		`ON CONFLICT ("institution","patient_key") DO UPDATE SET`,
		`patient_documents.document || EXCLUDED.document`,
		`"first_name":"Ann"`,
		`"patient_id":7`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in statement:\n%s", want, sql)
		}
	}
	update := sql[strings.Index(sql, "DO UPDATE SET"):]
	if strings.Contains(update, `"treatments"`) {
		t.Fatalf("patient upsert must not touch the treatments array:\n%s", sql)
	}
}

func TestAppendTreatmentQueryPushesOntoArray(t *testing.T) {
	db := dryRunDB(t)
	c := NewRepository(db).Collection("hospital1")
	treatment := record.Document{"id": int64(12), "patient_id": int64(5), "display_name": "Surgery"}

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		q, err := c.appendTreatmentQuery(tx, "5", int64(5), treatment, time.Now().UTC())
		if err != nil {
			t.Fatalf("build append query: %v", err)
		}
		return q
	})

	for _, want := range []string{
		`'hospital1'`,
		`'{"patient_id":5}'::jsonb`,
		`jsonb_build_array('{"display_name":"Surgery","id":12,"patient_id":5}'::jsonb)`,
		`ON CONFLICT (institution, patient_key) DO UPDATE`,
		`treatments = patient_documents.treatments || EXCLUDED.treatments`,
		`RETURNING (xmax = 0) AS inserted`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in statement:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "document ||") {
		t.Fatalf("appending a treatment must leave an existing document alone:\n%s", sql)
	}
}

func TestLockPatientQuery(t *testing.T) {
	db := dryRunDB(t)
	c := NewRepository(db).Collection("hospital1")

	var rec PatientDocumentModel
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return c.lockPatientQuery(tx, "7", &rec)
	})
	for _, want := range []string{"institution = 'hospital1'", "patient_key = '7'", "FOR UPDATE"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in statement:\n%s", want, sql)
		}
	}
}

// postgresCollection connects to the database named by POSTGRES_* / DB_NAME and
// returns a collection in a namespace unique to the test.
func postgresCollection(t *testing.T) *PostgresCollection {
	t.Helper()
	if os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("POSTGRES_HOST not set")
	}
	db, err := gorm.Open(postgres.Open(database.DSN(config.Load())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	institution := "test-" + uuid.New().String()
	t.Cleanup(func() {
		db.Where("institution = ?", institution).Delete(&PatientDocumentModel{})
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repo.Collection(institution)
}

func TestPostgresCollection(t *testing.T) {
	c := postgresCollection(t)
	ctx := context.Background()

	patient := record.Document{"id": int64(7), "first_name": "Ann", "city": "Haifa"}
	if err := c.UpsertPatient(ctx, patient); err != nil {
		t.Fatalf("UpsertPatient failed: %v", err)
	}
	if err := c.UpsertPatient(ctx, record.Document{"id": 7.0, "city": "Tel Aviv"}); err != nil {
		t.Fatalf("UpsertPatient failed: %v", err)
	}
	doc, err := c.Get(ctx, int64(7))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["first_name"] != "Ann" || doc["city"] != "Tel Aviv" {
		t.Fatalf("expected merged document, got %v", doc)
	}

	treatment := record.Document{"id": int64(1), "patient_id": int64(7), "status": "Active"}
	created, err := c.AppendTreatment(ctx, int64(7), treatment)
	if err != nil || created {
		t.Fatalf("expected append to existing patient, got created=%v err=%v", created, err)
	}
	if _, err := c.AppendTreatment(ctx, int64(7), treatment); err != nil {
		t.Fatalf("AppendTreatment failed: %v", err)
	}
	doc, _ = c.Get(ctx, int64(7))
	if n := len(doc["treatments"].([]record.Document)); n != 2 {
		t.Fatalf("expected append to duplicate the treatment, got %d entries", n)
	}

	created, err = c.AppendTreatment(ctx, int64(9), record.Document{"id": int64(2), "patient_id": int64(9)})
	if err != nil || !created {
		t.Fatalf("expected stub creation, got created=%v err=%v", created, err)
	}
	stub, _ := c.Get(ctx, int64(9))
	if stub["patient_id"] != float64(9) || len(stub["treatments"].([]record.Document)) != 1 {
		t.Fatalf("unexpected stub document: %v", stub)
	}

	if _, err := c.UpsertTreatment(ctx, int64(9), record.Document{"id": int64(2), "status": "Completed"}); err != nil {
		t.Fatalf("UpsertTreatment failed: %v", err)
	}
	stub, _ = c.Get(ctx, int64(9))
	treatments := stub["treatments"].([]record.Document)
	if len(treatments) != 1 || treatments[0]["status"] != "Completed" {
		t.Fatalf("expected treatment to be replaced, got %v", treatments)
	}

	if _, err := c.Get(ctx, int64(404)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
