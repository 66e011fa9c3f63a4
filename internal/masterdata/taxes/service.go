package taxes

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]TaxRate, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (TaxRate, error) {
	if id <= 0 {
		return TaxRate{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Active returns the rate only while it may still be applied to new documents.
func (s *Service) Active(ctx context.Context, id int64) (TaxRate, error) {
	tax, err := s.Get(ctx, id)
	if err != nil {
		return TaxRate{}, err
	}
	if !tax.IsActive {
		return TaxRate{}, fmt.Errorf("%w: tax rate %s is inactive", shared.ErrValidation, tax.Name)
	}
	return tax, nil
}

func (s *Service) Create(ctx context.Context, tax TaxRate) (TaxRate, error) {
	tax.Name = strings.TrimSpace(tax.Name)
	tax.Description = strings.TrimSpace(tax.Description)
	if err := s.validate(tax); err != nil {
		return TaxRate{}, err
	}
	tax.IsActive = true
	return s.repo.Create(ctx, tax)
}

func (s *Service) Update(ctx context.Context, id int64, tax TaxRate) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	tax.Name = strings.TrimSpace(tax.Name)
	tax.Description = strings.TrimSpace(tax.Description)
	if err := s.validate(tax); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, tax)
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.SetActive(ctx, id, active)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
