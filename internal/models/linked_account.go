package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkedAccount holds the aggregator token behind an SME's bank link, so
// scheduled refreshes can re-pull history without a new connect call.
type LinkedAccount struct {
	SMEID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Token         string
	ConnectedAt   time.Time
	LastRefreshAt *time.Time
}
