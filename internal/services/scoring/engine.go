package scoring

import (
	"math"
	"sort"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
)

// EvidenceSnapshot is the accepted-evidence view of one verification cycle
// at scoring time.
type EvidenceSnapshot struct {
	HasDocument      bool
	HasVideo         bool
	HasLinkedAccount bool
}

type Result struct {
	PulseScore  int
	ProfitScore int
	Breakdown   map[string]int
}

type Engine struct {
	minMonths int
}

func NewEngine(minMonths int) *Engine {
	return &Engine{minMonths: minMonths}
}

// Compute derives both scores from the evidence snapshot and an immutable
// transaction history. Deterministic and free of wall-clock reads: the
// ledger window is measured from the first to the last transaction
// timestamp, so identical inputs always score identically.
func (e *Engine) Compute(snapshot EvidenceSnapshot, history []models.Transaction) (Result, error) {
	if len(history) == 0 {
		return Result{}, errs.Wrap(errs.ErrInsufficientData, "empty ledger")
	}

	ordered := make([]models.Transaction, len(history))
	copy(ordered, history)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].ExternalID < ordered[j].ExternalID
	})

	months := monthSpan(ordered[0].OccurredAt, ordered[len(ordered)-1].OccurredAt)
	if months < e.minMonths {
		return Result{}, errs.Wrapf(errs.ErrInsufficientData, "ledger spans %d months, need %d", months, e.minMonths)
	}

	breakdown := map[string]int{}

	pulse := 0
	if snapshot.HasDocument {
		pulse += 25
		breakdown["cac_verification"] = 25
	}
	if snapshot.HasVideo {
		pulse += 25
		breakdown["video_authenticity"] = 25
	}
	if snapshot.HasLinkedAccount {
		pulse += 20
		breakdown["bank_account_match"] = 20
	}
	consistency := activityConsistency(ordered, months)
	pulse += consistency
	breakdown["activity_consistency"] = consistency

	margin := profitMargin(ordered)
	trend := growthTrend(ordered)
	breakdown["profitability"] = margin
	breakdown["growth_trend"] = trend
	profit := margin + trend

	return Result{
		PulseScore:  clamp(pulse, 0, 100),
		ProfitScore: clamp(profit, 0, 100),
		Breakdown:   breakdown,
	}, nil
}

// monthSpan counts calendar months covered from first to last, inclusive.
func monthSpan(first, last time.Time) int {
	f := first.UTC()
	l := last.UTC()
	return (l.Year()-f.Year())*12 + int(l.Month()) - int(f.Month()) + 1
}

// activityConsistency scores up to 30 for the fraction of months in the
// window with at least one transaction.
func activityConsistency(ordered []models.Transaction, months int) int {
	active := map[int]bool{}
	for _, tx := range ordered {
		t := tx.OccurredAt.UTC()
		active[t.Year()*12+int(t.Month())] = true
	}
	return clamp(int(math.Round(30*float64(len(active))/float64(months))), 0, 30)
}

// profitMargin maps the net credit margin into 0..60.
func profitMargin(ordered []models.Transaction) int {
	var credit, debit float64
	for _, tx := range ordered {
		if tx.Direction == models.DirectionCredit {
			credit += tx.Amount
		} else {
			debit += tx.Amount
		}
	}
	if credit <= 0 {
		return 0
	}
	margin := (credit - debit) / credit
	return clamp(int(math.Round(margin*100*0.6)), 0, 60)
}

// growthTrend compares net flow of the later half of the window against the
// earlier half, mapped into 0..40.
func growthTrend(ordered []models.Transaction) int {
	mid := ordered[0].OccurredAt.Add(ordered[len(ordered)-1].OccurredAt.Sub(ordered[0].OccurredAt) / 2)
	var early, late float64
	for _, tx := range ordered {
		amount := tx.Amount
		if tx.Direction == models.DirectionDebit {
			amount = -amount
		}
		if tx.OccurredAt.After(mid) {
			late += amount
		} else {
			early += amount
		}
	}
	switch {
	case late > early && late > 0:
		return 40
	case late > 0:
		return 25
	case late == early:
		return 15
	default:
		return 5
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
