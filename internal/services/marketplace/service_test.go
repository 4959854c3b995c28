package marketplace

import (
	"path/filepath"
	"testing"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupMarketplace(t *testing.T) (*Service, *repository.MarketplaceRepository) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "marketplace.sqlite")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.MarketplaceRow{}))

	repo := repository.NewMarketplaceRepository(db)
	return NewService(repo), repo
}

func publish(t *testing.T, repo *repository.MarketplaceRepository, industry, location string, score int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, repo.Upsert(&models.MarketplaceRow{
		SMEID:        id,
		BusinessName: "SME " + id.String()[:8],
		Industry:     industry,
		Location:     location,
		PulseScore:   score,
		ProfitScore:  score,
		PublishedAt:  time.Now().UTC(),
	}))
	return id
}

func TestQueryIndustryFilterCorrectness(t *testing.T) {
	svc, repo := setupMarketplace(t)
	publish(t, repo, "retail", "Lagos", 70)
	publish(t, repo, "retail", "Abuja", 60)
	publish(t, repo, "fintech", "Lagos", 90)

	page, err := svc.Query(Filters{Industry: "retail"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, row := range page.Items {
		require.Equal(t, "retail", row.Industry)
	}
}

func TestQueryFiltersAreANDed(t *testing.T) {
	svc, repo := setupMarketplace(t)
	match := publish(t, repo, "retail", "Lagos", 80)
	publish(t, repo, "retail", "Abuja", 85)
	publish(t, repo, "fintech", "Lagos", 85)
	publish(t, repo, "retail", "Lagos", 40)

	minScore := 60
	page, err := svc.Query(Filters{Industry: "retail", Location: "Lagos", MinProfitScore: &minScore}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, match, page.Items[0].SMEID)
}

func TestQueryNoFiltersReturnsAllVerified(t *testing.T) {
	svc, repo := setupMarketplace(t)
	for i := 0; i < 3; i++ {
		publish(t, repo, "services", "Kano", 50+i)
	}

	page, err := svc.Query(Filters{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.EqualValues(t, 3, page.Total)
}

func TestQueryOrderingIsStable(t *testing.T) {
	svc, repo := setupMarketplace(t)
	publish(t, repo, "retail", "Lagos", 60)
	publish(t, repo, "retail", "Lagos", 90)
	publish(t, repo, "retail", "Lagos", 75)
	// Tied scores break on id.
	publish(t, repo, "retail", "Lagos", 75)

	first, err := svc.Query(Filters{}, 1, 10)
	require.NoError(t, err)
	for i := 1; i < len(first.Items); i++ {
		require.GreaterOrEqual(t, first.Items[i-1].PulseScore, first.Items[i].PulseScore)
	}

	for run := 0; run < 3; run++ {
		again, err := svc.Query(Filters{}, 1, 10)
		require.NoError(t, err)
		require.Equal(t, len(first.Items), len(again.Items))
		for i := range first.Items {
			require.Equal(t, first.Items[i].SMEID, again.Items[i].SMEID)
		}
	}
}

func TestQueryPaginationIsConsistent(t *testing.T) {
	svc, repo := setupMarketplace(t)
	for i := 0; i < 7; i++ {
		publish(t, repo, "manufacturing", "Rivers", 10*i)
	}

	seen := map[uuid.UUID]bool{}
	for pageNum := 1; pageNum <= 3; pageNum++ {
		page, err := svc.Query(Filters{}, pageNum, 3)
		require.NoError(t, err)
		for _, row := range page.Items {
			require.False(t, seen[row.SMEID], "row repeated across pages")
			seen[row.SMEID] = true
		}
	}
	require.Len(t, seen, 7)
}

func TestQueryUnknownFilterValueRejected(t *testing.T) {
	svc, _ := setupMarketplace(t)

	_, err := svc.Query(Filters{Industry: "mining"}, 1, 10)
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.Query(Filters{Location: "Atlantis"}, 1, 10)
	require.ErrorIs(t, err, ErrInvalidFilter)

	bad := 400
	_, err = svc.Query(Filters{MinProfitScore: &bad}, 1, 10)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestDetailUnpublishedIsNotFound(t *testing.T) {
	svc, repo := setupMarketplace(t)
	published := publish(t, repo, "retail", "Lagos", 70)

	row, err := svc.Detail(published)
	require.NoError(t, err)
	require.Equal(t, published, row.SMEID)

	// A pending SME has no row; direct lookup leaks nothing.
	_, err = svc.Detail(uuid.New())
	require.ErrorIs(t, err, errs.ErrNotFound)
}
