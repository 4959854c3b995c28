package verification

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"
	"trust-verification-backend/internal/services/ledger"
	"trust-verification-backend/internal/services/scoring"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubProvider struct {
	mu       sync.Mutex
	records  []ledger.ProviderTransaction
	terminal bool
}

func (p *stubProvider) FetchTransactions(ctx context.Context, token string) ([]ledger.ProviderTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal {
		return nil, errs.Wrap(errs.ErrTerminalProvider, "link revoked")
	}
	return p.records, nil
}

type fixture struct {
	svc      *Service
	smeRepo  *repository.SMERepository
	evidence *repository.EvidenceRepository
	market   *repository.MarketplaceRepository
	provider *stubProvider
}

func setup(t *testing.T, review ReviewFunc) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "engine.sqlite")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.SME{}, &models.EvidenceItem{}, &models.Transaction{}, &models.LinkedAccount{}, &models.MarketplaceRow{},
	))

	smeRepo := repository.NewSMERepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	provider := &stubProvider{}
	ledgerSvc := ledger.NewService(txRepo, repository.NewLinkedAccountRepository(db), provider, time.Second)
	scorer := scoring.NewEngine(6)

	return &fixture{
		svc:      NewService(db, smeRepo, evidenceRepo, ledgerSvc, scorer, review),
		smeRepo:  smeRepo,
		evidence: evidenceRepo,
		market:   repository.NewMarketplaceRepository(db),
		provider: provider,
	}
}

func (f *fixture) createSME(t *testing.T) *models.SME {
	t.Helper()
	sme := &models.SME{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		BusinessName: "Ada Textiles",
		Industry:     "retail",
		Location:     "Lagos",
		Status:       models.StatusPending,
	}
	require.NoError(t, f.smeRepo.Create(sme))
	return sme
}

func monthsOfHistory(months int) []ledger.ProviderTransaction {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	var records []ledger.ProviderTransaction
	for m := 0; m < months; m++ {
		at := start.AddDate(0, m, 0)
		records = append(records,
			ledger.ProviderTransaction{ExternalID: fmt.Sprintf("c-%d", m), Amount: 2000, Direction: models.DirectionCredit, OccurredAt: at},
			ledger.ProviderTransaction{ExternalID: fmt.Sprintf("d-%d", m), Amount: 1400, Direction: models.DirectionDebit, OccurredAt: at.Add(2 * time.Hour)},
		)
	}
	return records
}

// submitAll pushes document, video and linked-account evidence through the
// machine and runs the ledger refresh synchronously so assertions are
// deterministic.
func (f *fixture) submitAll(t *testing.T, smeID uuid.UUID) {
	t.Helper()
	_, err := f.svc.SubmitEvidence(smeID, models.EvidenceKindDocument, []byte("cac certificate"), nil)
	require.NoError(t, err)
	_, err = f.svc.SubmitEvidence(smeID, models.EvidenceKindVideo, []byte("attestation video"), nil)
	require.NoError(t, err)

	item, err := f.svc.SubmitEvidence(smeID, models.EvidenceKindAccount, []byte("mono-token"), nil)
	require.NoError(t, err)
	f.svc.refreshAndAdvance(context.Background(), smeID, item.ID, "mono-token")
}

func TestDuplicateEvidenceRejectedAndOriginalUnchanged(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	first, err := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindDocument, []byte("same bytes"), nil)
	require.NoError(t, err)

	_, err = f.svc.SubmitEvidence(sme.ID, models.EvidenceKindDocument, []byte("same bytes"), nil)
	require.ErrorIs(t, err, errs.ErrDuplicateEvidence)

	stored, err := f.evidence.GetByID(first.ID)
	require.NoError(t, err)
	require.Equal(t, models.EvidenceAccepted, stored.Outcome)
	require.Equal(t, first.Fingerprint, stored.Fingerprint)
}

func TestResubmissionSupersedesButKeepsHistory(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	first, err := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindDocument, []byte("v1"), nil)
	require.NoError(t, err)
	second, err := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindDocument, []byte("v2"), nil)
	require.NoError(t, err)

	firstStored, err := f.evidence.GetByID(first.ID)
	require.NoError(t, err)
	require.Equal(t, models.EvidenceSuperseded, firstStored.Outcome)

	current, err := f.evidence.Current(sme.ID, 0, models.EvidenceKindDocument)
	require.NoError(t, err)
	require.Equal(t, second.ID, current.ID)
}

func TestConcurrentSubmissionsOneCurrentOneSuperseded(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	submitErrs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, submitErr := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindVideo, []byte(fmt.Sprintf("take-%d", i)), nil)
			submitErrs <- submitErr
		}(i)
	}
	wg.Wait()
	close(submitErrs)
	for err := range submitErrs {
		require.NoError(t, err)
	}

	items, err := f.evidence.ListCycle(sme.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	outcomes := map[string]int{}
	for _, item := range items {
		outcomes[item.Outcome]++
	}
	require.Equal(t, 1, outcomes[models.EvidenceAccepted])
	require.Equal(t, 1, outcomes[models.EvidenceSuperseded])
}

func TestShortHistoryStaysPending(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(4)

	f.submitAll(t, sme.ID)

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Nil(t, stored.PulseScore)
	require.Nil(t, stored.ProfitScore)

	_, err = f.market.GetBySMEID(sme.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQualifyingHistoryVerifiesAndPublishesOnce(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(4)

	f.submitAll(t, sme.ID)

	// SME later links a richer account: 8 qualifying months.
	f.provider.mu.Lock()
	f.provider.records = monthsOfHistory(8)
	f.provider.mu.Unlock()

	item, err := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindAccount, []byte("mono-token-2"), nil)
	require.NoError(t, err)
	f.svc.refreshAndAdvance(context.Background(), sme.ID, item.ID, "mono-token-2")

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusVerified, stored.Status)
	require.NotNil(t, stored.PulseScore)
	require.NotNil(t, stored.ProfitScore)

	rows, total, err := f.market.Search("", "", nil, 0, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, sme.ID, rows[0].SMEID)
	require.Equal(t, *stored.ProfitScore, rows[0].ProfitScore)
}

func TestConcurrentAdvanceKeepsInvariant(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(8)

	f.submitAll(t, sme.ID)

	advanceErrs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			advanceErrs <- f.svc.Advance(sme.ID)
		}()
	}
	wg.Wait()
	close(advanceErrs)
	for err := range advanceErrs {
		require.NoError(t, err)
	}

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusVerified, stored.Status)
	require.NotNil(t, stored.PulseScore)
	require.NotNil(t, stored.ProfitScore)

	_, total, err := f.market.Search("", "", nil, 0, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestRejectedEvidenceFailsCycle(t *testing.T) {
	review := func(kind string, payload []byte) error {
		if kind == models.EvidenceKindVideo {
			return errors.New("liveness check failed")
		}
		return nil
	}
	f := setup(t, review)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(8)

	f.submitAll(t, sme.ID)

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, stored.Status)
	require.Contains(t, stored.FailReason, "liveness check failed")
	require.Nil(t, stored.PulseScore)
}

func TestRevokedBankLinkFailsCycle(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.terminal = true

	f.submitAll(t, sme.ID)

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, stored.Status)
	require.Contains(t, stored.FailReason, "revoked")
}

func TestRejectIsTerminalAndUnpublishes(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	require.NoError(t, f.svc.Reject(sme.ID, "disqualifying ledger pattern"))

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, stored.Status)
	require.Equal(t, "disqualifying ledger pattern", stored.FailReason)

	// Idempotent on an already-failed cycle.
	require.NoError(t, f.svc.Reject(sme.ID, "again"))
	stored, err = f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, "disqualifying ledger pattern", stored.FailReason)
}

func TestRejectAfterVerifiedRefused(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(8)
	f.submitAll(t, sme.ID)

	err := f.svc.Reject(sme.ID, "late rejection")
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestResubmissionAfterFailureOpensFreshCycle(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	require.NoError(t, f.svc.Reject(sme.ID, "expired evidence"))

	// Same payload as cycle 0 would have had; a fresh cycle has its own
	// evidence snapshot, so nothing is a duplicate.
	item, err := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindDocument, []byte("cac certificate"), nil)
	require.NoError(t, err)
	require.Equal(t, 1, item.Cycle)

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Empty(t, stored.FailReason)
	require.Equal(t, 1, stored.Cycle)
}

func TestReopenRequiresFailedState(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	err := f.svc.Reopen(sme.ID)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, f.svc.Reject(sme.ID, "failed liveness check"))
	require.NoError(t, f.svc.Reopen(sme.ID))

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Equal(t, 1, stored.Cycle)
}

func TestSubmitAfterVerifiedRefused(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(8)
	f.submitAll(t, sme.ID)

	_, err := f.svc.SubmitEvidence(sme.ID, models.EvidenceKindDocument, []byte("new doc"), nil)
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestUnknownEvidenceKindRejected(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	_, err := f.svc.SubmitEvidence(sme.ID, "tax_certificate", []byte("x"), nil)
	require.ErrorIs(t, err, errs.ErrInvalidEvidence)
}

func TestRepublishProfileUpdatesPublishedRow(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	f.provider.records = monthsOfHistory(8)
	f.submitAll(t, sme.ID)

	stored, err := f.smeRepo.GetByID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusVerified, stored.Status)

	stored.BusinessName = "Ada Textiles Ltd"
	stored.Industry = "fashion"
	require.NoError(t, f.smeRepo.Save(stored))
	require.NoError(t, f.svc.RepublishProfile(sme.ID))

	row, err := f.market.GetBySMEID(sme.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada Textiles Ltd", row.BusinessName)
	require.Equal(t, "fashion", row.Industry)
	require.Equal(t, *stored.PulseScore, row.PulseScore)
}

func TestRepublishProfilePendingIsNoOp(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)

	require.NoError(t, f.svc.RepublishProfile(sme.ID))

	_, err := f.market.GetBySMEID(sme.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestConnectAccountStoreFailureVoidsEvidence(t *testing.T) {
	f := setup(t, nil)
	sme := f.createSME(t)
	require.NoError(t, f.smeRepo.DB().Migrator().DropTable(&models.LinkedAccount{}))

	_, err := f.svc.ConnectAccount(context.Background(), sme.ID, "mono-token")
	require.Error(t, err)

	// The half-linked submission must not count as live account evidence.
	current, err := f.evidence.Current(sme.ID, 0, models.EvidenceKindAccount)
	require.NoError(t, err)
	require.Nil(t, current)
}
