package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EvidenceKindDocument = "incorporation_document"
	EvidenceKindVideo    = "attestation_video"
	EvidenceKindAccount  = "linked_account_token"
)

// RequiredEvidenceKinds must all be accepted in a cycle before the SME can
// transition to verified.
var RequiredEvidenceKinds = []string{EvidenceKindDocument, EvidenceKindVideo, EvidenceKindAccount}

func ValidEvidenceKind(v string) bool {
	return v == EvidenceKindDocument || v == EvidenceKindVideo || v == EvidenceKindAccount
}

const (
	EvidencePending    = "pending"
	EvidenceAccepted   = "accepted"
	EvidenceRejected   = "rejected"
	EvidenceSuperseded = "superseded"
)

// EvidenceItem is one submitted artifact. Re-submission of the same kind in
// the same cycle supersedes the prior item; superseded and rejected rows are
// kept for audit.
type EvidenceItem struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SMEID        uuid.UUID      `gorm:"type:uuid;index:idx_evidence_sme_cycle" json:"sme_id"`
	Cycle        int            `gorm:"index:idx_evidence_sme_cycle" json:"-"`
	Kind         string         `gorm:"index" json:"kind"`
	Fingerprint  string         `gorm:"index" json:"fingerprint"`
	Outcome      string         `gorm:"index" json:"outcome"`
	RejectReason string         `json:"reject_reason,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}
