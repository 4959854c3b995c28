package repository

import (
	"errors"

	"trust-verification-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EvidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) Create(item *models.EvidenceItem) error {
	return r.db.Create(item).Error
}

func (r *EvidenceRepository) Save(item *models.EvidenceItem) error {
	return r.db.Save(item).Error
}

func (r *EvidenceRepository) GetByID(id uuid.UUID) (*models.EvidenceItem, error) {
	var item models.EvidenceItem
	if err := r.db.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Current returns the live (pending or accepted) item of a kind in a cycle,
// or nil when the kind has not been submitted yet.
func (r *EvidenceRepository) Current(smeID uuid.UUID, cycle int, kind string) (*models.EvidenceItem, error) {
	var item models.EvidenceItem
	err := r.db.
		Where("sme_id = ? AND cycle = ? AND kind = ? AND outcome IN ?",
			smeID, cycle, kind, []string{models.EvidencePending, models.EvidenceAccepted}).
		Order("submitted_at DESC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AcceptedFingerprintExists reports whether the fingerprint was already
// accepted for the kind in the cycle. Drives DuplicateEvidence.
func (r *EvidenceRepository) AcceptedFingerprintExists(smeID uuid.UUID, cycle int, kind, fingerprint string) (bool, error) {
	var count int64
	err := r.db.Model(&models.EvidenceItem{}).
		Where("sme_id = ? AND cycle = ? AND kind = ? AND fingerprint = ? AND outcome = ?",
			smeID, cycle, kind, fingerprint, models.EvidenceAccepted).
		Count(&count).Error
	return count > 0, err
}

func (r *EvidenceRepository) ListCycle(smeID uuid.UUID, cycle int) ([]models.EvidenceItem, error) {
	var items []models.EvidenceItem
	err := r.db.
		Where("sme_id = ? AND cycle = ?", smeID, cycle).
		Order("submitted_at ASC").
		Find(&items).Error
	return items, err
}

// Supersede marks the current live item of a kind as superseded so a
// re-submission becomes the one that counts, without losing history.
func (r *EvidenceRepository) Supersede(smeID uuid.UUID, cycle int, kind string) error {
	return r.db.Model(&models.EvidenceItem{}).
		Where("sme_id = ? AND cycle = ? AND kind = ? AND outcome IN ?",
			smeID, cycle, kind, []string{models.EvidencePending, models.EvidenceAccepted}).
		Update("outcome", models.EvidenceSuperseded).Error
}
