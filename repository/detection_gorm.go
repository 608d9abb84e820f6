package repository

import (
	"context"
	"encoding/json"
	"time"

	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type detectionRecordModel struct {
	ID                string `gorm:"primaryKey"`
	Category          string `gorm:"index:idx_detection_records_category;not null"`
	Kind              string `gorm:"not null"`
	Severity          string `gorm:"index:idx_detection_records_severity;not null"`
	Title             string
	Description       string    `gorm:"type:text"`
	AffectedResources string    `gorm:"type:text;default:'[]'"` // JSON
	RemediationHint   string    `gorm:"type:text"`
	Automatable       bool      `gorm:"default:false"`
	DetectedAt        time.Time `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (detectionRecordModel) TableName() string {
	return "detection_records"
}

// --- Repository Implementation ---

type DetectionGormStore struct {
	db *gorm.DB
}

func NewDetectionGormStore(db *gorm.DB) *DetectionGormStore {
	return &DetectionGormStore{db: db}
}

func (r *DetectionGormStore) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&detectionRecordModel{})
}

func (r *DetectionGormStore) ReplaceCategory(ctx context.Context, category string, records []domainDetection.Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(records))
		for i := range records {
			ids = append(ids, records[i].ID)
		}

		// Findings the latest run no longer produced are resolved.
		del := tx.Where("category = ?", category)
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&detectionRecordModel{}).Error; err != nil {
			return err
		}

		for i := range records {
			m, err := toDetectionModel(&records[i])
			if err != nil {
				return err
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DetectionGormStore) GetAll(ctx context.Context) ([]domainDetection.Record, error) {
	var models []detectionRecordModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]domainDetection.Record, 0, len(models))
	for i := range models {
		rec, err := fromDetectionModel(models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toDetectionModel(rec *domainDetection.Record) (detectionRecordModel, error) {
	resources, err := json.Marshal(rec.AffectedResources)
	if err != nil {
		return detectionRecordModel{}, err
	}
	now := time.Now().UTC()
	return detectionRecordModel{
		ID:                rec.ID,
		Category:          rec.Category,
		Kind:              rec.Kind,
		Severity:          string(rec.Severity),
		Title:             rec.Title,
		Description:       rec.Description,
		AffectedResources: string(resources),
		RemediationHint:   rec.RemediationHint,
		Automatable:       rec.Automatable,
		DetectedAt:        rec.DetectedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func fromDetectionModel(m detectionRecordModel) (domainDetection.Record, error) {
	var resources []domainDetection.AffectedResource
	if m.AffectedResources != "" {
		if err := json.Unmarshal([]byte(m.AffectedResources), &resources); err != nil {
			return domainDetection.Record{}, err
		}
	}
	return domainDetection.Record{
		Finding: domainDetection.Finding{
			ID:                m.ID,
			Kind:              m.Kind,
			Severity:          domainDetection.Severity(m.Severity),
			Title:             m.Title,
			Description:       m.Description,
			AffectedResources: resources,
			RemediationHint:   m.RemediationHint,
			Automatable:       m.Automatable,
		},
		Category:   m.Category,
		DetectedAt: m.DetectedAt,
	}, nil
}
