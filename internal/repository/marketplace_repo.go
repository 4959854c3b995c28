package repository

import (
	"errors"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarketplaceRepository struct {
	db *gorm.DB
}

func NewMarketplaceRepository(db *gorm.DB) *MarketplaceRepository {
	return &MarketplaceRepository{db: db}
}

// Upsert applies a publish atomically: a reader sees either the prior row or
// the full new row, never a half-updated one.
func (r *MarketplaceRepository) Upsert(row *models.MarketplaceRow) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sme_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

func (r *MarketplaceRepository) Delete(smeID uuid.UUID) error {
	return r.db.Delete(&models.MarketplaceRow{}, "sme_id = ?", smeID).Error
}

func (r *MarketplaceRepository) GetBySMEID(smeID uuid.UUID) (*models.MarketplaceRow, error) {
	var row models.MarketplaceRow
	err := r.db.First(&row, "sme_id = ?", smeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrapf(errs.ErrNotFound, "marketplace row %s", smeID)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Search applies the AND-combined filters with stable ordering: pulse score
// descending, id ascending as tiebreak, so unchanged data pages identically.
func (r *MarketplaceRepository) Search(industry, location string, minProfitScore *int, offset, limit int) ([]models.MarketplaceRow, int64, error) {
	q := r.db.Model(&models.MarketplaceRow{})
	if industry != "" {
		q = q.Where("industry = ?", industry)
	}
	if location != "" {
		q = q.Where("location = ?", location)
	}
	if minProfitScore != nil {
		q = q.Where("profit_score >= ?", *minProfitScore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MarketplaceRow
	err := q.Order("pulse_score DESC, sme_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}
