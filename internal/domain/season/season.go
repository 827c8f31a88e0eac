// Package season manages quarterly sales figures keyed by year and season.
package season

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no sale is recorded for a year and season.
	ErrNotFound = errors.New("season sale not found")
	// ErrAlreadyExists is returned when a sale for the year and season exists.
	ErrAlreadyExists = errors.New("season sale already exists")
)

// Sale is the sales total of one season (1-4) of a year.
type Sale struct {
	Year   int
	Season int
	Amount int64
}

// ValidationError describes a rejected season sale field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Repository defines persistence operations for season sales.
type Repository interface {
	Create(ctx context.Context, s Sale) error
	Get(ctx context.Context, year, season int) (*Sale, error)
	List(ctx context.Context) ([]Sale, error)
	ListByYear(ctx context.Context, year int) ([]Sale, error)
	ListBySeason(ctx context.Context, season int) ([]Sale, error)
	// Update overwrites the amount and returns ErrNotFound when no row matches.
	Update(ctx context.Context, s Sale) error
	Delete(ctx context.Context, year, season int) (*Sale, error)
}

// Service validates season sales before they reach the repository.
type Service struct {
	sales Repository
}

// NewService creates a season Service.
func NewService(sales Repository) *Service {
	return &Service{sales: sales}
}

// Record stores a new season sale.
func (s *Service) Record(ctx context.Context, sale Sale) (*Sale, error) {
	if err := validate(sale); err != nil {
		return nil, err
	}
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("create season sale: %w", err)
	}
	return &sale, nil
}

// Update overwrites the amount of an existing season sale.
func (s *Service) Update(ctx context.Context, sale Sale) (*Sale, error) {
	if err := validate(sale); err != nil {
		return nil, err
	}
	if err := s.sales.Update(ctx, sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// Get returns the sale of one season.
func (s *Service) Get(ctx context.Context, year, season int) (*Sale, error) {
	if err := validSeason(season); err != nil {
		return nil, err
	}
	return s.sales.Get(ctx, year, season)
}

// List returns every sale ordered by year and season.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	return s.sales.List(ctx)
}

// ListByYear returns the sales of one year ordered by season.
func (s *Service) ListByYear(ctx context.Context, year int) ([]Sale, error) {
	return s.sales.ListByYear(ctx, year)
}

// ListBySeason returns the sales of one season across years.
func (s *Service) ListBySeason(ctx context.Context, season int) ([]Sale, error) {
	if err := validSeason(season); err != nil {
		return nil, err
	}
	return s.sales.ListBySeason(ctx, season)
}

// Delete removes the sale of one season.
func (s *Service) Delete(ctx context.Context, year, season int) (*Sale, error) {
	if err := validSeason(season); err != nil {
		return nil, err
	}
	return s.sales.Delete(ctx, year, season)
}

func validate(s Sale) error {
	if s.Year <= 0 {
		return &ValidationError{Field: "year", Reason: "must be positive"}
	}
	if err := validSeason(s.Season); err != nil {
		return err
	}
	if s.Amount < 0 {
		return &ValidationError{Field: "sale", Reason: "must not be negative"}
	}
	return nil
}

func validSeason(season int) error {
	if season < 1 || season > 4 {
		return &ValidationError{Field: "season", Reason: "must be between 1 and 4"}
	}
	return nil
}
