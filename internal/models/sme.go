package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Industries and Locations are the enumerated filter sets exposed to the
// marketplace. Unknown values are rejected at the boundary, never stored.
var Industries = []string{"retail", "manufacturing", "services", "agriculture", "fashion", "fintech"}

var Locations = []string{"Lagos", "Abuja", "Kano", "Rivers", "Ibadan"}

func ValidIndustry(v string) bool { return contains(Industries, v) }
func ValidLocation(v string) bool { return contains(Locations, v) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// SME is the authoritative record. Status reaches "verified" only when both
// scores are set and all evidence kinds for the current cycle are accepted;
// "failed" always carries FailReason. Scores are nil until computed.
type SME struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"-"`
	BusinessName   string         `json:"business_name"`
	Industry       string         `gorm:"index" json:"industry"`
	Location       string         `gorm:"index" json:"location"`
	Description    string         `json:"description"`
	FoundedDate    *time.Time     `json:"founded_date,omitempty"`
	Status         string         `gorm:"index" json:"status"`
	PulseScore     *int           `json:"pulse_score"`
	ProfitScore    *int           `json:"profit_score"`
	FailReason     string         `json:"fail_reason,omitempty"`
	Cycle          int            `json:"-"`
	ScoreBreakdown datatypes.JSON `json:"score_breakdown,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
