package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"
	"trust-verification-backend/internal/services/ledger"
	"trust-verification-backend/internal/services/scoring"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyVerified is returned when evidence arrives for an SME whose
// current cycle already reached verified.
var ErrAlreadyVerified = errors.New("verification already complete")

// ReviewFunc inspects a submitted artifact and returns nil to accept it or
// an error describing why it is rejected. Document analysis and video
// liveness checks plug in here; the default accepts everything.
type ReviewFunc func(kind string, payload []byte) error

// Service is the per-SME lifecycle controller and the single writer of
// authoritative SME state. Every mutating path runs under a lock keyed by
// SME id, so concurrent submissions or advance calls for one SME serialize
// and a cycle sees exactly one terminal transition.
type Service struct {
	db       *gorm.DB
	smeRepo  *repository.SMERepository
	evidence *repository.EvidenceRepository
	ledger   *ledger.Service
	scorer   *scoring.Engine
	review   ReviewFunc

	locks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewService(
	db *gorm.DB,
	smeRepo *repository.SMERepository,
	evidence *repository.EvidenceRepository,
	ledgerSvc *ledger.Service,
	scorer *scoring.Engine,
	review ReviewFunc,
) *Service {
	if review == nil {
		review = func(string, []byte) error { return nil }
	}
	return &Service{
		db:       db,
		smeRepo:  smeRepo,
		evidence: evidence,
		ledger:   ledgerSvc,
		scorer:   scorer,
		review:   review,
	}
}

func (s *Service) lock(smeID uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(smeID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Fingerprint is the content address of an artifact, used for idempotent
// re-submission detection.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// SubmitEvidence persists one artifact for the SME's current cycle and
// schedules re-evaluation. Submitting an identical payload for a kind that
// already has it accepted fails with DuplicateEvidence; a different payload
// supersedes the prior item, which stays on record. An SME in failed starts
// a fresh cycle on its next submission.
func (s *Service) SubmitEvidence(smeID uuid.UUID, kind string, payload []byte, metadata map[string]any) (*models.EvidenceItem, error) {
	mu := s.lock(smeID)
	mu.Lock()
	defer mu.Unlock()

	item, err := s.submitLocked(smeID, kind, payload, metadata)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.Advance(smeID); err != nil {
			slog.Error("advance after evidence submission", "sme_id", smeID, "err", err)
		}
	}()
	return item, nil
}

func (s *Service) submitLocked(smeID uuid.UUID, kind string, payload []byte, metadata map[string]any) (*models.EvidenceItem, error) {
	if !models.ValidEvidenceKind(kind) {
		return nil, errs.Wrapf(errs.ErrInvalidEvidence, "evidence kind %q", kind)
	}

	sme, err := s.smeRepo.GetByID(smeID)
	if err != nil {
		return nil, err
	}
	switch sme.Status {
	case models.StatusVerified:
		return nil, ErrAlreadyVerified
	case models.StatusFailed:
		// Re-submission after failure opens a new cycle; the failed record
		// is never mutated back, prior evidence never carries over.
		if err := s.reopenLocked(sme); err != nil {
			return nil, err
		}
	}

	fingerprint := Fingerprint(payload)
	exists, err := s.evidence.AcceptedFingerprintExists(sme.ID, sme.Cycle, kind, fingerprint)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.Wrapf(errs.ErrDuplicateEvidence, "%s fingerprint %s", kind, fingerprint[:12])
	}

	if err := s.evidence.Supersede(sme.ID, sme.Cycle, kind); err != nil {
		return nil, err
	}

	outcome := models.EvidenceAccepted
	rejectReason := ""
	if reviewErr := s.review(kind, payload); reviewErr != nil {
		outcome = models.EvidenceRejected
		rejectReason = reviewErr.Error()
	}

	item := &models.EvidenceItem{
		ID:           uuid.New(),
		SMEID:        sme.ID,
		Cycle:        sme.Cycle,
		Kind:         kind,
		Fingerprint:  fingerprint,
		Outcome:      outcome,
		RejectReason: rejectReason,
		SubmittedAt:  time.Now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err == nil {
			item.Metadata = raw
		}
	}
	if err := s.evidence.Create(item); err != nil {
		return nil, errs.Wrap(err, "store evidence")
	}
	return item, nil
}

// ConnectAccount registers linked-account evidence and triggers a ledger
// refresh in the background. The call returns once the evidence is durable;
// refresh failures never fail the submission itself.
func (s *Service) ConnectAccount(ctx context.Context, smeID uuid.UUID, token string) (*models.EvidenceItem, error) {
	mu := s.lock(smeID)
	mu.Lock()
	item, err := s.submitLocked(smeID, models.EvidenceKindAccount, []byte(token), map[string]any{"provider": "mono"})
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if err := s.ledger.SaveLink(smeID, token); err != nil {
		// Void the evidence so a half-linked account never counts toward
		// the cycle.
		item.Outcome = models.EvidenceSuperseded
		if saveErr := s.evidence.Save(item); saveErr != nil {
			slog.Error("void unlinked account evidence", "sme_id", smeID, "err", saveErr)
		}
		mu.Unlock()
		return nil, errs.Wrap(err, "store bank link")
	}
	mu.Unlock()

	go s.refreshAndAdvance(context.WithoutCancel(ctx), smeID, item.ID, token)
	return item, nil
}

// refreshAndAdvance pulls provider history and re-evaluates the cycle. A
// terminal provider failure (revoked link) rejects the linked-account
// evidence, which Advance turns into a failed cycle.
func (s *Service) refreshAndAdvance(ctx context.Context, smeID uuid.UUID, evidenceID uuid.UUID, token string) {
	_, err := s.ledger.Refresh(ctx, smeID, token)
	if errors.Is(err, errs.ErrTerminalProvider) {
		mu := s.lock(smeID)
		mu.Lock()
		s.rejectEvidenceLocked(smeID, evidenceID, "bank link revoked by provider")
		mu.Unlock()
		if err := s.ledger.DropLink(smeID); err != nil {
			slog.Error("drop revoked bank link", "sme_id", smeID, "err", err)
		}
	} else if err != nil {
		// Transient failure after retries: the submission stands, the
		// ledger merely lags until the next refresh.
		slog.Warn("ledger refresh lagging", "sme_id", smeID, "err", err)
	}

	if err := s.Advance(smeID); err != nil {
		slog.Error("advance after ledger refresh", "sme_id", smeID, "err", err)
	}
}

func (s *Service) rejectEvidenceLocked(smeID, evidenceID uuid.UUID, reason string) {
	item, err := s.evidence.GetByID(evidenceID)
	if err != nil {
		slog.Error("load evidence for rejection", "sme_id", smeID, "evidence_id", evidenceID, "err", err)
		return
	}
	// A re-submission may have superseded this item while the refresh was
	// in flight; the stale outcome must not overwrite the newer one.
	if item.Outcome != models.EvidenceAccepted && item.Outcome != models.EvidencePending {
		return
	}
	item.Outcome = models.EvidenceRejected
	item.RejectReason = reason
	if err := s.evidence.Save(item); err != nil {
		slog.Error("reject evidence", "sme_id", smeID, "evidence_id", evidenceID, "err", err)
	}
}

// Advance re-evaluates the SME's current cycle. It is idempotent and safe
// to call at any time: terminal states are left untouched, incomplete
// evidence or a short ledger keep the SME pending, a rejected item fails
// the cycle, and a complete cycle with sufficient history is scored,
// verified and published in one transaction.
func (s *Service) Advance(smeID uuid.UUID) error {
	mu := s.lock(smeID)
	mu.Lock()
	defer mu.Unlock()

	sme, err := s.smeRepo.GetByID(smeID)
	if err != nil {
		return err
	}
	if sme.Status != models.StatusPending {
		return nil
	}

	current := map[string]*models.EvidenceItem{}
	items, err := s.evidence.ListCycle(sme.ID, sme.Cycle)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if item.Outcome == models.EvidenceSuperseded {
			continue
		}
		current[item.Kind] = item
	}

	for _, item := range current {
		if item.Outcome == models.EvidenceRejected {
			return s.failLocked(sme, "evidence rejected: "+item.RejectReason)
		}
	}

	for _, kind := range models.RequiredEvidenceKinds {
		item, ok := current[kind]
		if !ok || item.Outcome != models.EvidenceAccepted {
			return nil // incomplete, stay pending
		}
	}

	history, err := s.ledger.Snapshot(sme.ID, time.Now().UTC())
	if err != nil {
		return errs.Wrap(err, "ledger snapshot")
	}

	snapshot := scoring.EvidenceSnapshot{
		HasDocument:      true,
		HasVideo:         true,
		HasLinkedAccount: true,
	}
	result, err := s.scorer.Compute(snapshot, history)
	if errors.Is(err, errs.ErrInsufficientData) {
		// Not a failure: the SME may link more history later.
		slog.Info("scoring deferred", "sme_id", sme.ID, "reason", err)
		return nil
	}
	if err != nil {
		return errs.Wrap(err, "compute scores")
	}

	return s.publishLocked(sme, result)
}

// publishLocked is the single terminal transition to verified: the SME
// update and the marketplace row land in one transaction, so a reader never
// observes a verified SME without scores or a half-written row.
func (s *Service) publishLocked(sme *models.SME, result scoring.Result) error {
	now := time.Now().UTC()
	sme.Status = models.StatusVerified
	sme.PulseScore = &result.PulseScore
	sme.ProfitScore = &result.ProfitScore
	sme.FailReason = ""
	if raw, err := json.Marshal(result.Breakdown); err == nil {
		sme.ScoreBreakdown = raw
	}

	row := &models.MarketplaceRow{
		SMEID:        sme.ID,
		BusinessName: sme.BusinessName,
		Industry:     sme.Industry,
		Location:     sme.Location,
		Description:  sme.Description,
		FoundedDate:  sme.FoundedDate,
		PulseScore:   result.PulseScore,
		ProfitScore:  result.ProfitScore,
		Version:      sme.Cycle,
		PublishedAt:  now,
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sme).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sme_id"}},
			UpdateAll: true,
		}).Create(row).Error
	})
}

// RepublishProfile refreshes the published row after a profile edit so the
// lender view keeps tracking the SME record. No-op unless the SME is
// verified with scores in place.
func (s *Service) RepublishProfile(smeID uuid.UUID) error {
	mu := s.lock(smeID)
	mu.Lock()
	defer mu.Unlock()

	sme, err := s.smeRepo.GetByID(smeID)
	if err != nil {
		return err
	}
	if sme.Status != models.StatusVerified || sme.PulseScore == nil || sme.ProfitScore == nil {
		return nil
	}

	row := &models.MarketplaceRow{
		SMEID:        sme.ID,
		BusinessName: sme.BusinessName,
		Industry:     sme.Industry,
		Location:     sme.Location,
		Description:  sme.Description,
		FoundedDate:  sme.FoundedDate,
		PulseScore:   *sme.PulseScore,
		ProfitScore:  *sme.ProfitScore,
		Version:      sme.Cycle,
		PublishedAt:  time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sme_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

// Reject is the explicit failure path, terminal for the current cycle.
func (s *Service) Reject(smeID uuid.UUID, reason string) error {
	mu := s.lock(smeID)
	mu.Lock()
	defer mu.Unlock()

	sme, err := s.smeRepo.GetByID(smeID)
	if err != nil {
		return err
	}
	switch sme.Status {
	case models.StatusFailed:
		return nil
	case models.StatusVerified:
		return ErrAlreadyVerified
	}
	return s.failLocked(sme, reason)
}

func (s *Service) failLocked(sme *models.SME, reason string) error {
	sme.Status = models.StatusFailed
	sme.FailReason = reason
	sme.PulseScore = nil
	sme.ProfitScore = nil
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sme).Error; err != nil {
			return err
		}
		return tx.Delete(&models.MarketplaceRow{}, "sme_id = ?", sme.ID).Error
	})
}

// Reopen starts a fresh verification cycle for a failed SME. The new cycle
// has its own evidence snapshot; nothing from the failed cycle counts.
func (s *Service) Reopen(smeID uuid.UUID) error {
	mu := s.lock(smeID)
	mu.Lock()
	defer mu.Unlock()

	sme, err := s.smeRepo.GetByID(smeID)
	if err != nil {
		return err
	}
	if sme.Status != models.StatusFailed {
		return errs.Wrapf(errs.ErrUnauthorized, "re-verification requires a failed cycle, status is %s", sme.Status)
	}
	return s.reopenLocked(sme)
}

func (s *Service) reopenLocked(sme *models.SME) error {
	sme.Cycle++
	sme.Status = models.StatusPending
	sme.PulseScore = nil
	sme.ProfitScore = nil
	sme.FailReason = ""
	sme.ScoreBreakdown = nil
	return s.smeRepo.Save(sme)
}

// EvidenceHistory lists every item of the current cycle, superseded and
// rejected included, oldest first.
func (s *Service) EvidenceHistory(smeID uuid.UUID) ([]models.EvidenceItem, error) {
	sme, err := s.smeRepo.GetByID(smeID)
	if err != nil {
		return nil, err
	}
	return s.evidence.ListCycle(sme.ID, sme.Cycle)
}
