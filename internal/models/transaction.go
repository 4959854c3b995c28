package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Transaction is one normalized ledger entry. ExternalID is the dedup key:
// replaying a provider batch never duplicates a row for the same SME.
type Transaction struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SMEID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_tx_sme_external"`
	ExternalID string    `gorm:"uniqueIndex:idx_tx_sme_external"`
	Amount     float64
	Direction  string
	Category   string
	OccurredAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}
