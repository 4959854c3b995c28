package models

import (
	"time"

	"github.com/google/uuid"
)

// MarketplaceRow is the lender-facing read model. Only verified SMEs have a
// row; the verification service writes it atomically on publish and removes
// it when a cycle fails. Never mutated outside the publish step.
type MarketplaceRow struct {
	SMEID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessName string     `json:"business_name"`
	Industry     string     `gorm:"index" json:"industry"`
	Location     string     `gorm:"index" json:"location"`
	Description  string     `json:"description"`
	FoundedDate  *time.Time `json:"founded_date,omitempty"`
	PulseScore   int        `json:"pulse_score"`
	ProfitScore  int        `gorm:"index" json:"profit_score"`
	Version      int        `json:"-"`
	PublishedAt  time.Time  `json:"published_at"`
}
