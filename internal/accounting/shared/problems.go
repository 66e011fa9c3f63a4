package shared

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

func init() {
	httpx.RegisterErrors(
		httpx.ErrorMapping{Err: ErrAccountNotFound, Status: http.StatusNotFound, Title: "Account Not Found"},
		httpx.ErrorMapping{Err: ErrJournalNotFound, Status: http.StatusNotFound, Title: "Journal Not Found"},
		httpx.ErrorMapping{Err: ErrEntryNotFound, Status: http.StatusNotFound, Title: "Journal Entry Not Found"},
		httpx.ErrorMapping{Err: ErrLineNotFound, Status: http.StatusNotFound, Title: "Journal Line Not Found"},
		httpx.ErrorMapping{Err: ErrMappingNotFound, Status: http.StatusNotFound, Title: "Account Mapping Not Found"},
		httpx.ErrorMapping{Err: ErrFiscalYearNotFound, Status: http.StatusNotFound, Title: "Fiscal Year Not Found"},
		httpx.ErrorMapping{Err: ErrNoActiveFiscalYear, Status: http.StatusConflict, Title: "No Active Fiscal Year"},
		httpx.ErrorMapping{Err: ErrNoFiscalYearForDate, Status: http.StatusUnprocessableEntity, Title: "No Fiscal Year For Date"},
		httpx.ErrorMapping{Err: ErrPeriodNotFound, Status: http.StatusNotFound, Title: "Period Not Found"},
		httpx.ErrorMapping{Err: ErrStatementNotFound, Status: http.StatusNotFound, Title: "Financial Statement Not Found"},
		httpx.ErrorMapping{Err: ErrDuplicateCode, Status: http.StatusConflict, Title: "Duplicate Account Code"},
		httpx.ErrorMapping{Err: ErrDuplicatePeriodName, Status: http.StatusConflict, Title: "Duplicate Period Name"},
		httpx.ErrorMapping{Err: ErrDuplicateEntryNumber, Status: http.StatusConflict, Title: "Duplicate Entry Number"},
		httpx.ErrorMapping{Err: ErrSourceAlreadyLinked, Status: http.StatusConflict, Title: "Source Already Posted"},
		httpx.ErrorMapping{Err: ErrAccountCycle, Status: http.StatusConflict, Title: "Account Cycle"},
		httpx.ErrorMapping{Err: ErrAccountProtected, Status: http.StatusConflict, Title: "Account Protected"},
		httpx.ErrorMapping{Err: ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid State"},
		httpx.ErrorMapping{Err: ErrPeriodClosed, Status: http.StatusConflict, Title: "Period Closed"},
		httpx.ErrorMapping{Err: ErrFiscalYearClosed, Status: http.StatusConflict, Title: "Fiscal Year Closed"},
		httpx.ErrorMapping{Err: ErrAccountInactive, Status: http.StatusUnprocessableEntity, Title: "Account Inactive"},
		httpx.ErrorMapping{Err: ErrInvalidLine, Status: http.StatusUnprocessableEntity, Title: "Invalid Line"},
		httpx.ErrorMapping{Err: ErrUnbalanced, Status: http.StatusUnprocessableEntity, Title: "Unbalanced Entry"},
		httpx.ErrorMapping{Err: ErrMissingAccount, Status: http.StatusUnprocessableEntity, Title: "Missing Account"},
		httpx.ErrorMapping{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
		httpx.ErrorMapping{Err: ErrInvalidAccountType, Status: http.StatusBadRequest, Title: "Invalid Account Type"},
		httpx.ErrorMapping{Err: ErrInvalidDateRange, Status: http.StatusBadRequest, Title: "Invalid Date Range"},
	)
}
