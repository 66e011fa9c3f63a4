package taxes

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/shared"
)

func (s *Service) validate(t TaxRate) error {
	var errs error
	if strings.TrimSpace(t.Name) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: tax name", shared.ErrRequiredField))
	}
	if t.Rate.IsNegative() || t.Rate.GreaterThan(hundred) {
		errs = multierr.Append(errs, fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation))
	}
	if !t.Rate.Equal(t.Rate.Round(2)) {
		errs = multierr.Append(errs, fmt.Errorf("%w: tax rate allows at most 2 decimal places", shared.ErrValidation))
	}
	if t.SalesTaxAccountID <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: sales tax account", shared.ErrRequiredField))
	}
	if t.PurchaseTaxAccountID <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: purchase tax account", shared.ErrRequiredField))
	}
	return errs
}
