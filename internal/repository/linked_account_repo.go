package repository

import (
	"time"

	"trust-verification-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LinkedAccountRepository struct {
	db *gorm.DB
}

func NewLinkedAccountRepository(db *gorm.DB) *LinkedAccountRepository {
	return &LinkedAccountRepository{db: db}
}

// Upsert replaces the SME's link; reconnecting with a new token supersedes
// the old one.
func (r *LinkedAccountRepository) Upsert(link *models.LinkedAccount) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sme_id"}},
		UpdateAll: true,
	}).Create(link).Error
}

func (r *LinkedAccountRepository) List() ([]models.LinkedAccount, error) {
	var links []models.LinkedAccount
	err := r.db.Order("connected_at ASC").Find(&links).Error
	return links, err
}

func (r *LinkedAccountRepository) TouchRefreshed(smeID uuid.UUID, at time.Time) error {
	return r.db.Model(&models.LinkedAccount{}).
		Where("sme_id = ?", smeID).
		Update("last_refresh_at", at).Error
}

func (r *LinkedAccountRepository) Delete(smeID uuid.UUID) error {
	return r.db.Delete(&models.LinkedAccount{}, "sme_id = ?", smeID).Error
}
