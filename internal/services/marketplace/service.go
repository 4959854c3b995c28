package marketplace

import (
	"errors"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"

	"github.com/google/uuid"
)

const DefaultPageSize = 10

// Filters is the full set of recognized marketplace filters. Provided
// fields are AND-combined; zero values are no-ops. Anything else coming
// from a client is rejected at the HTTP boundary, never silently ignored.
type Filters struct {
	Industry       string
	Location       string
	MinProfitScore *int
}

// ErrInvalidFilter flags a filter value outside the recognized sets.
var ErrInvalidFilter = errors.New("invalid marketplace filter")

func (f Filters) Validate() error {
	if f.Industry != "" && !models.ValidIndustry(f.Industry) {
		return errs.Wrapf(ErrInvalidFilter, "unknown industry %q", f.Industry)
	}
	if f.Location != "" && !models.ValidLocation(f.Location) {
		return errs.Wrapf(ErrInvalidFilter, "unknown location %q", f.Location)
	}
	if f.MinProfitScore != nil && (*f.MinProfitScore < 0 || *f.MinProfitScore > 100) {
		return errs.Wrapf(ErrInvalidFilter, "min_profit_score %d out of range", *f.MinProfitScore)
	}
	return nil
}

type Page struct {
	Items      []models.MarketplaceRow `json:"items"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	PerPage    int                     `json:"per_page"`
	TotalPages int                     `json:"total_pages"`
}

// Service answers lender queries from the published read view only. It
// never touches authoritative SME records, so it never blocks on a
// verification in progress and never leaks one.
type Service struct {
	repo *repository.MarketplaceRepository
}

func NewService(repo *repository.MarketplaceRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Query(filters Filters, page, perPage int) (*Page, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = DefaultPageSize
	}

	rows, total, err := s.repo.Search(filters.Industry, filters.Location, filters.MinProfitScore, (page-1)*perPage, perPage)
	if err != nil {
		return nil, errs.Wrap(err, "marketplace search")
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return &Page{
		Items:      rows,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// Detail returns a published row. An SME that exists but is not verified is
// reported as NotFound: unverified SMEs are invisible to lenders even by
// direct id lookup.
func (s *Service) Detail(smeID uuid.UUID) (*models.MarketplaceRow, error) {
	return s.repo.GetBySMEID(smeID)
}

// FilterOptions lists the enumerated values clients may filter on.
func (s *Service) FilterOptions() map[string][]string {
	return map[string][]string{
		"industries": models.Industries,
		"locations":  models.Locations,
	}
}
