package repository

import (
	"time"

	"trust-verification-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// InsertBatch merges records by (sme_id, external_id). Conflicting rows are
// skipped, so replaying a provider batch is idempotent and never reorders
// what is already stored. Returns the number of newly inserted rows.
func (r *TransactionRepository) InsertBatch(records []models.Transaction) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sme_id"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(&records)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ListAsOf returns the SME's history up to asOf, oldest first.
func (r *TransactionRepository) ListAsOf(smeID uuid.UUID, asOf time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.
		Where("sme_id = ? AND occurred_at <= ?", smeID, asOf).
		Order("occurred_at ASC, external_id ASC").
		Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) Count(smeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).Where("sme_id = ?", smeID).Count(&count).Error
	return count, err
}
