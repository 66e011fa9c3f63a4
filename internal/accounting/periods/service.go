package periods

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records calendar changes.
type AuditPort interface {
	Record(ctx context.Context, log platformshared.AuditLog) error
}

// Service manages fiscal years and their periods.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the fiscal calendar service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateFiscalYear inserts a year, activating it in the same transaction when asked.
func (s *Service) CreateFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return FiscalYear{}, err
	}
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertFiscalYear(ctx, in)
		if err != nil {
			return err
		}
		if in.Activate {
			if err := activate(ctx, tx, created.ID); err != nil {
				return err
			}
			created.IsActive = true
		}
		year = created
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, in.ActorID, "fiscal_year.create", "fiscal_year", year.ID, map[string]any{"name": year.Name, "active": year.IsActive})
	return year, nil
}

// ActivateFiscalYear makes id the single active year.
func (s *Service) ActivateFiscalYear(ctx context.Context, id, actorID int64) (FiscalYear, error) {
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := activate(ctx, tx, id); err != nil {
			return err
		}
		y, err := tx.GetFiscalYearForUpdate(ctx, id)
		year = y
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, actorID, "fiscal_year.activate", "fiscal_year", id, nil)
	return year, nil
}

func activate(ctx context.Context, tx TxRepository, id int64) error {
	if _, err := tx.GetFiscalYearForUpdate(ctx, id); err != nil {
		return err
	}
	if err := tx.DeactivateOtherYears(ctx, id); err != nil {
		return err
	}
	return tx.SetFiscalYearActive(ctx, id, true)
}

// CloseFiscalYear blocks any further posting into the year.
func (s *Service) CloseFiscalYear(ctx context.Context, id, actorID int64) (FiscalYear, error) {
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		y, err := tx.GetFiscalYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if y.IsClosed {
			return fmt.Errorf("%w: fiscal year %s already closed", shared.ErrInvalidStatus, y.Name)
		}
		if err := tx.MarkFiscalYearClosed(ctx, id); err != nil {
			return err
		}
		y.IsClosed = true
		year = y
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, actorID, "fiscal_year.close", "fiscal_year", id, nil)
	return year, nil
}

// ListFiscalYears returns years newest first.
func (s *Service) ListFiscalYears(ctx context.Context) ([]FiscalYear, error) {
	return s.repo.ListFiscalYears(ctx)
}

// GetFiscalYear loads one year.
func (s *Service) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return s.repo.GetFiscalYear(ctx, id)
}

// ActiveFiscalYear returns the active year or ErrNoActiveFiscalYear.
func (s *Service) ActiveFiscalYear(ctx context.Context) (FiscalYear, error) {
	return s.repo.ActiveFiscalYear(ctx)
}

// ListPeriods returns the periods of a year by start date.
func (s *Service) ListPeriods(ctx context.Context, fiscalYearID int64) ([]FinancialPeriod, error) {
	return s.repo.ListPeriods(ctx, fiscalYearID)
}

// GetPeriod loads one period.
func (s *Service) GetPeriod(ctx context.Context, id int64) (FinancialPeriod, error) {
	return s.repo.GetPeriod(ctx, id)
}

// CreatePeriod adds an open period; names are unique within the year.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (FinancialPeriod, error) {
	in.Name = strings.TrimSpace(in.Name)
	var period FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetFiscalYearForUpdate(ctx, in.FiscalYearID)
		if err != nil {
			return err
		}
		if err := in.Validate(year); err != nil {
			return err
		}
		exists, err := tx.PeriodNameExists(ctx, in.FiscalYearID, in.Name)
		if err != nil {
			return err
		}
		if exists {
			return shared.ErrDuplicatePeriodName
		}
		p, err := tx.InsertPeriod(ctx, in)
		period = p
		return err
	})
	if err != nil {
		return FinancialPeriod{}, err
	}
	s.record(ctx, in.ActorID, "period.create", "financial_period", period.ID, map[string]any{"name": period.Name, "fiscal_year_id": period.FiscalYearID})
	return period, nil
}

// GenerateMonthlyPeriods splits a year into calendar-month periods named
// "January 2024" etc. Months whose name already exists are skipped.
func (s *Service) GenerateMonthlyPeriods(ctx context.Context, fiscalYearID, actorID int64) ([]FinancialPeriod, error) {
	var created []FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetFiscalYearForUpdate(ctx, fiscalYearID)
		if err != nil {
			return err
		}
		for _, in := range monthlyRanges(year) {
			in.ActorID = actorID
			exists, err := tx.PeriodNameExists(ctx, fiscalYearID, in.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			p, err := tx.InsertPeriod(ctx, in)
			if err != nil {
				return err
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "period.generate", "fiscal_year", fiscalYearID, map[string]any{"count": len(created)})
	return created, nil
}

func monthlyRanges(year FiscalYear) []CreatePeriodInput {
	var out []CreatePeriodInput
	start := DateOnly(year.StartDate)
	end := DateOnly(year.EndDate)
	for cursor := start; !cursor.After(end); {
		monthEnd := time.Date(cursor.Year(), cursor.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		if monthEnd.After(end) {
			monthEnd = end
		}
		out = append(out, CreatePeriodInput{
			FiscalYearID: year.ID,
			Name:         cursor.Format("January 2006"),
			StartDate:    cursor,
			EndDate:      monthEnd,
		})
		cursor = monthEnd.AddDate(0, 0, 1)
	}
	return out
}

// ClosePeriod records who closed the period and when.
func (s *Service) ClosePeriod(ctx context.Context, id, byUser int64) (FinancialPeriod, error) {
	now := s.now()
	var period FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.IsClosed() {
			return fmt.Errorf("%w: period %s already closed", shared.ErrInvalidStatus, p.Name)
		}
		var closedBy *int64
		if byUser != 0 {
			closedBy = &byUser
		}
		if err := tx.UpdatePeriodStatus(ctx, id, PeriodStatusClosed, closedBy, &now); err != nil {
			return err
		}
		p.Status = PeriodStatusClosed
		p.ClosedBy = closedBy
		p.ClosedAt = &now
		period = p
		return nil
	})
	if err != nil {
		return FinancialPeriod{}, err
	}
	s.record(ctx, byUser, "period.close", "financial_period", id, map[string]any{"name": period.Name})
	return period, nil
}

// ReopenPeriod moves a closed period back to open unless its year is closed.
func (s *Service) ReopenPeriod(ctx context.Context, id, actorID int64) (FinancialPeriod, error) {
	var period FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsClosed() {
			return fmt.Errorf("%w: period %s is not closed", shared.ErrInvalidStatus, p.Name)
		}
		year, err := tx.GetFiscalYearForUpdate(ctx, p.FiscalYearID)
		if err != nil {
			return err
		}
		if year.IsClosed {
			return shared.ErrFiscalYearClosed
		}
		if err := tx.UpdatePeriodStatus(ctx, id, PeriodStatusOpen, nil, nil); err != nil {
			return err
		}
		p.Status = PeriodStatusOpen
		p.ClosedBy = nil
		p.ClosedAt = nil
		period = p
		return nil
	})
	if err != nil {
		return FinancialPeriod{}, err
	}
	s.record(ctx, actorID, "period.reopen", "financial_period", id, nil)
	return period, nil
}

// EnsurePostable reports whether an entry dated date may post into the year.
// The date must lie inside the year, and closed years or periods covering
// the date block posting even when they belong to another year.
func (s *Service) EnsurePostable(ctx context.Context, fiscalYearID int64, date time.Time) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetFiscalYearForUpdate(ctx, fiscalYearID)
		if err != nil {
			return err
		}
		years, err := tx.ListFiscalYearsCovering(ctx, date)
		if err != nil {
			return err
		}
		covering, err := tx.ListPeriodsCovering(ctx, date)
		if err != nil {
			return err
		}
		return CheckPostable(year, years, covering, date)
	})
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, platformshared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
