package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/taxes"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/procurement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Services is the wired ledger domain shared by the API server, the worker
// and the operator CLI.
type Services struct {
	Accounts    *accounts.Service
	Periods     *periods.Service
	Journals    *journals.Service
	Reports     *reports.Service
	Taxes       *taxes.Service
	AP          *ap.Service
	AR          *ar.Service
	Procurement *procurement.Service
	Hooks       *integration.Hooks
	Mappings    mappings.Repository
	Idempotency *shared.IdempotencyStore
	Audit       *shared.AuditLogger
	Approvals   *shared.ApprovalRecorder
}

// ServiceDeps collects the infrastructure the domain is built on.
type ServiceDeps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewServices builds every domain service and connects auto-posting. The
// subledgers dispatch events in-process until SetDispatcher is called.
func NewServices(deps ServiceDeps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{}
	}
	audit := shared.NewAuditLogger(deps.Pool)
	approvals := shared.NewApprovalRecorder(deps.Pool, logger)

	accountService := accounts.NewService(accounts.NewRepository(deps.Pool), audit)
	periodService := periods.NewService(periods.NewRepository(deps.Pool), audit)

	cache := reports.NewCache(deps.Redis, cfg.ReportCacheTTL)
	reportService := reports.NewService(reports.NewRepository(deps.Pool), periodService, cache)

	journalService := journals.NewService(journals.NewRepository(deps.Pool), audit).
		WithLogger(logger)
	if deps.Metrics != nil {
		journalService.WithObserver(deps.Metrics)
	}

	mappingRepo := mappings.NewRepository(deps.Pool)
	resolver := mappings.NewResolver(mappingRepo, cfg.Policy(), cfg.SuspenseAccountCode)
	hooks := integration.NewHooks(journalService, resolver, logger)
	if deps.Metrics != nil {
		hooks.WithObserver(deps.Metrics)
	}

	taxService := taxes.NewService(taxes.NewRepository(deps.Pool))

	apService := ap.NewService(ap.NewRepository(deps.Pool), taxService).WithLogger(logger)
	apService.SetAudit(audit, approvals)
	arService := ar.NewService(ar.NewRepository(deps.Pool), taxService).WithLogger(logger)
	arService.SetAudit(audit, approvals)

	for _, name := range []string{integration.EventBillApproved, integration.EventBillPaymentRecorded} {
		hooks.OnPosted(name, apService.LinkJournalEntry)
	}
	for _, name := range []string{integration.EventInvoiceApproved, integration.EventInvoicePaymentRecorded} {
		hooks.OnPosted(name, arService.LinkJournalEntry)
	}

	svc := &Services{
		Accounts:    accountService,
		Periods:     periodService,
		Journals:    journalService,
		Reports:     reportService,
		Taxes:       taxService,
		AP:          apService,
		AR:          arService,
		Procurement: procurement.NewService(procurement.NewRepository(deps.Pool), audit),
		Hooks:       hooks,
		Mappings:    mappingRepo,
		Idempotency: shared.NewIdempotencyStore(deps.Pool),
		Audit:       audit,
		Approvals:   approvals,
	}
	svc.SetDispatcher(integration.SyncDispatcher{Hooks: hooks})
	return svc
}

// SetDispatcher routes subledger events through d.
func (s *Services) SetDispatcher(d integration.Dispatcher) {
	s.AP.SetDispatcher(d)
	s.AR.SetDispatcher(d)
}
