package shared

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

var (
	ErrNotFound      = errors.New("masterdata: record not found")
	ErrDuplicate     = errors.New("masterdata: duplicate name")
	ErrValidation    = errors.New("masterdata: validation failed")
	ErrInvalidID     = errors.New("masterdata: invalid id")
	ErrRequiredField = errors.New("masterdata: field is required")
	ErrInUse         = errors.New("masterdata: record is referenced by ledger documents")
)

func init() {
	httpx.RegisterErrors(
		httpx.ErrorMapping{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
		httpx.ErrorMapping{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
		httpx.ErrorMapping{Err: ErrInUse, Status: http.StatusConflict, Title: "In Use"},
		httpx.ErrorMapping{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
		httpx.ErrorMapping{Err: ErrRequiredField, Status: http.StatusBadRequest, Title: "Validation Failed"},
		httpx.ErrorMapping{Err: ErrInvalidID, Status: http.StatusBadRequest, Title: "Invalid ID"},
	)
}
