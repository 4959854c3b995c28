package repository

import (
	"errors"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SMERepository struct {
	db *gorm.DB
}

func NewSMERepository(db *gorm.DB) *SMERepository {
	return &SMERepository{db: db}
}

func (r *SMERepository) DB() *gorm.DB {
	return r.db
}

func (r *SMERepository) Create(sme *models.SME) error {
	return r.db.Create(sme).Error
}

func (r *SMERepository) GetByID(id uuid.UUID) (*models.SME, error) {
	var sme models.SME
	err := r.db.First(&sme, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrapf(errs.ErrNotFound, "sme %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &sme, nil
}

func (r *SMERepository) GetByUserID(userID uuid.UUID) (*models.SME, error) {
	var sme models.SME
	err := r.db.First(&sme, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrap(errs.ErrNotFound, "sme profile")
	}
	if err != nil {
		return nil, err
	}
	return &sme, nil
}

func (r *SMERepository) Save(sme *models.SME) error {
	return r.db.Save(sme).Error
}
