package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/synaptica-ai/hospital-import/pkg/record"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PatientDocumentModel is one patient document of one institution. Scalar fields
// live in Document; Treatments is a jsonb array.
type PatientDocumentModel struct {
	Institution string            `gorm:"primaryKey;column:institution"`
	PatientKey  string            `gorm:"primaryKey;column:patient_key"`
	Document    datatypes.JSONMap `gorm:"column:document;not null"`
	Treatments  datatypes.JSON    `gorm:"column:treatments;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at"`
}

func (PatientDocumentModel) TableName() string {
	return "patient_documents"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AutoMigrate provisions the document table. Collections need no provisioning of
// their own; an institution's namespace exists once it holds a document.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PatientDocumentModel{})
}

// Collection returns the handle bound to one institution.
func (r *Repository) Collection(institution string) *PostgresCollection {
	return &PostgresCollection{db: r.db, institution: institution}
}

type PostgresCollection struct {
	db          *gorm.DB
	institution string
}

func (c *PostgresCollection) Namespace() string {
	return c.institution
}

func (c *PostgresCollection) UpsertPatient(ctx context.Context, doc record.Document) error {
	key, id, err := patientKey(doc)
	if err != nil {
		return err
	}
	document := datatypes.JSONMap(copyDocument(doc))
	document[FieldKey] = id
	now := time.Now().UTC()

	rec := &PatientDocumentModel{
		Institution: c.institution,
		PatientKey:  key,
		Document:    document,
		Treatments:  datatypes.JSON("[]"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = upsertPatientQuery(c.db.WithContext(ctx), rec).Error
	if err != nil {
		return persistenceError("upsert patient", key, err)
	}
	return nil
}

// upsertPatientQuery merges rec.Document into an existing row key by key, so
// scalars are overwritten and the treatments array is left alone.
func upsertPatientQuery(tx *gorm.DB, rec *PatientDocumentModel) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "institution"}, {Name: "patient_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"document":   gorm.Expr("patient_documents.document || EXCLUDED.document"),
			"updated_at": rec.UpdatedAt,
		}),
	}).Create(rec)
}

const appendTreatmentSQL = `
INSERT INTO patient_documents (institution, patient_key, document, treatments, created_at, updated_at)
VALUES (?, ?, ?::jsonb, jsonb_build_array(?::jsonb), ?, ?)
ON CONFLICT (institution, patient_key) DO UPDATE
SET treatments = patient_documents.treatments || EXCLUDED.treatments,
    updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`

func (c *PostgresCollection) AppendTreatment(ctx context.Context, patientID any, treatment record.Document) (bool, error) {
	key, err := KeyOf(patientID)
	if err != nil {
		return false, err
	}
	var result struct {
		Inserted bool
	}
	query, err := c.appendTreatmentQuery(c.db.WithContext(ctx), key, patientID, treatment, time.Now().UTC())
	if err != nil {
		return false, err
	}
	err = query.Scan(&result).Error
	if err != nil {
		return false, persistenceError("append treatment", key, err)
	}
	return result.Inserted, nil
}

// appendTreatmentQuery inserts a stub {patient_id} document holding treatment, or
// concatenates treatment onto the existing array. The row reports whether it was
// inserted.
func (c *PostgresCollection) appendTreatmentQuery(tx *gorm.DB, key string, patientID any, treatment record.Document, now time.Time) (*gorm.DB, error) {
	stub, err := json.Marshal(map[string]any{FieldKey: patientID})
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(treatment)
	if err != nil {
		return nil, fmt.Errorf("encode treatment: %w", err)
	}
	return tx.Raw(appendTreatmentSQL, c.institution, key, string(stub), string(payload), now, now), nil
}

func (c *PostgresCollection) lockPatientQuery(tx *gorm.DB, key string, dest *PatientDocumentModel) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("institution = ? AND patient_key = ?", c.institution, key).
		Limit(1).Find(dest)
}

func (c *PostgresCollection) UpsertTreatment(ctx context.Context, patientID any, treatment record.Document) (bool, error) {
	key, err := KeyOf(patientID)
	if err != nil {
		return false, err
	}
	created := false
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec PatientDocumentModel
		res := c.lockPatientQuery(tx, key, &rec)
		if res.Error != nil {
			return res.Error
		}
		now := time.Now().UTC()

		if res.RowsAffected == 0 {
			created = true
			treatments, err := json.Marshal([]record.Document{treatment})
			if err != nil {
				return err
			}
			return tx.Create(&PatientDocumentModel{
				Institution: c.institution,
				PatientKey:  key,
				Document:    datatypes.JSONMap{FieldKey: patientID},
				Treatments:  datatypes.JSON(treatments),
				CreatedAt:   now,
				UpdatedAt:   now,
			}).Error
		}

		var existing []record.Document
		if len(rec.Treatments) > 0 {
			if err := json.Unmarshal(rec.Treatments, &existing); err != nil {
				return fmt.Errorf("decode treatments: %w", err)
			}
		}
		merged, err := json.Marshal(replaceOrAppend(existing, treatment))
		if err != nil {
			return err
		}
		return tx.Model(&PatientDocumentModel{}).
			Where("institution = ? AND patient_key = ?", c.institution, key).
			Updates(map[string]interface{}{
				"treatments": datatypes.JSON(merged),
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return false, persistenceError("upsert treatment", key, err)
	}
	return created, nil
}

func (c *PostgresCollection) Get(ctx context.Context, patientID any) (record.Document, error) {
	key, err := KeyOf(patientID)
	if err != nil {
		return nil, err
	}
	var rec PatientDocumentModel
	result := c.db.WithContext(ctx).First(&rec, "institution = ? AND patient_key = ?", c.institution, key)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, persistenceError("get patient", key, result.Error)
	}
	return rec.Materialize()
}

// Materialize returns the document as stored, with its treatments array.
func (m *PatientDocumentModel) Materialize() (record.Document, error) {
	doc := copyDocument(record.Document(m.Document))
	var treatments []record.Document
	if len(m.Treatments) > 0 {
		if err := json.Unmarshal(m.Treatments, &treatments); err != nil {
			return nil, fmt.Errorf("decode treatments: %w", err)
		}
	}
	if treatments == nil {
		treatments = []record.Document{}
	}
	doc[FieldTreatments] = treatments
	return doc, nil
}
