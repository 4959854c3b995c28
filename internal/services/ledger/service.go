package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"

	"github.com/google/uuid"
)

// ProviderTransaction is the normalized feed record from the linked-account
// aggregator. The engine never sees a provider-specific wire format.
type ProviderTransaction struct {
	ExternalID string
	Amount     float64
	Direction  string
	Category   string
	OccurredAt time.Time
}

// Provider fetches transaction history for a linked-account token. Transient
// failures must be reported as errs.ErrTransientProvider; a revoked or
// otherwise dead link as errs.ErrTerminalProvider.
type Provider interface {
	FetchTransactions(ctx context.Context, token string) ([]ProviderTransaction, error)
}

type Service struct {
	txRepo   *repository.TransactionRepository
	links    *repository.LinkedAccountRepository
	provider Provider
	timeout  time.Duration

	retries      int
	retryBackoff time.Duration
}

func NewService(txRepo *repository.TransactionRepository, links *repository.LinkedAccountRepository, provider Provider, timeout time.Duration) *Service {
	return &Service{
		txRepo:       txRepo,
		links:        links,
		provider:     provider,
		timeout:      timeout,
		retries:      3,
		retryBackoff: 200 * time.Millisecond,
	}
}

// SaveLink records the aggregator token so scheduled refreshes can re-pull
// history for this SME. Reconnecting replaces the stored link.
func (s *Service) SaveLink(smeID uuid.UUID, token string) error {
	return s.links.Upsert(&models.LinkedAccount{
		SMEID:       smeID,
		Token:       token,
		ConnectedAt: time.Now().UTC(),
	})
}

// DropLink removes a dead link so the scheduler stops retrying it.
func (s *Service) DropLink(smeID uuid.UUID) error {
	return s.links.Delete(smeID)
}

// Ingest merges a provider batch into the SME's ledger. Replays are
// idempotent: records are deduplicated by external id and already-stored
// rows are never reordered.
func (s *Service) Ingest(smeID uuid.UUID, records []ProviderTransaction) (int, error) {
	rows := make([]models.Transaction, 0, len(records))
	for _, rec := range records {
		if rec.ExternalID == "" {
			continue
		}
		direction := rec.Direction
		if direction != models.DirectionCredit {
			direction = models.DirectionDebit
		}
		rows = append(rows, models.Transaction{
			ID:         uuid.New(),
			SMEID:      smeID,
			ExternalID: rec.ExternalID,
			Amount:     rec.Amount,
			Direction:  direction,
			Category:   rec.Category,
			OccurredAt: rec.OccurredAt.UTC(),
			CreatedAt:  time.Now().UTC(),
		})
	}
	inserted, err := s.txRepo.InsertBatch(rows)
	if err != nil {
		return 0, errs.Wrap(err, "insert ledger batch")
	}
	return inserted, nil
}

// Snapshot returns an immutable, time-ordered view of the SME's history up
// to asOf. Scoring reads snapshots, never a mutating live stream.
func (s *Service) Snapshot(smeID uuid.UUID, asOf time.Time) ([]models.Transaction, error) {
	return s.txRepo.ListAsOf(smeID, asOf)
}

// Refresh pulls history from the provider and ingests it. Transient provider
// failures are retried with doubling backoff up to a small fixed count;
// terminal failures (revoked link) are surfaced immediately so the caller
// can reject the linked-account evidence.
func (s *Service) Refresh(ctx context.Context, smeID uuid.UUID, token string) (int, error) {
	backoff := s.retryBackoff
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, errs.Wrap(errs.ErrTransientProvider, "refresh cancelled")
			}
			backoff *= 2
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		records, err := s.provider.FetchTransactions(fetchCtx, token)
		cancel()

		if err == nil {
			return s.Ingest(smeID, records)
		}
		if errors.Is(err, errs.ErrTerminalProvider) {
			return 0, err
		}
		lastErr = err
		slog.Warn("ledger refresh attempt failed",
			"sme_id", smeID, "attempt", attempt+1, "err", err)
	}
	return 0, errs.Wrap(errs.ErrTransientProvider, lastErr.Error())
}

func (s *Service) Count(smeID uuid.UUID) (int64, error) {
	return s.txRepo.Count(smeID)
}

// RunScheduledRefresh re-pulls every linked account on a fixed interval
// until the context is cancelled. onRefreshed fires after each successful
// pull so the caller can re-evaluate the SME; dead links are dropped.
func (s *Service) RunScheduledRefresh(ctx context.Context, interval time.Duration, onRefreshed func(uuid.UUID)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		links, err := s.links.List()
		if err != nil {
			slog.Error("list linked accounts", "err", err)
			continue
		}
		for _, link := range links {
			if _, err := s.Refresh(ctx, link.SMEID, link.Token); err != nil {
				if errors.Is(err, errs.ErrTerminalProvider) {
					slog.Warn("dropping revoked bank link", "sme_id", link.SMEID)
					if err := s.links.Delete(link.SMEID); err != nil {
						slog.Error("drop linked account", "sme_id", link.SMEID, "err", err)
					}
				}
				continue
			}
			if err := s.links.TouchRefreshed(link.SMEID, time.Now().UTC()); err != nil {
				slog.Error("touch linked account", "sme_id", link.SMEID, "err", err)
			}
			if onRefreshed != nil {
				onRefreshed(link.SMEID)
			}
		}
	}
}
