package ap

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

var (
	ErrVendorNotFound      = errors.New("ap: vendor not found")
	ErrVendorExists        = errors.New("ap: vendor already registered")
	ErrInvalidVendor       = errors.New("ap: invalid vendor")
	ErrBillNotFound        = errors.New("ap: bill not found")
	ErrDuplicateBillNumber = errors.New("ap: bill number already used for vendor")
	ErrInvalidStatus       = errors.New("ap: invalid status for operation")
	ErrInvalidBill         = errors.New("ap: invalid bill")
	ErrInvalidPayment      = errors.New("ap: invalid payment")
	ErrOverpayment         = errors.New("ap: payment exceeds remaining amount")
)

func init() {
	httpx.RegisterErrors(
		httpx.ErrorMapping{Err: ErrVendorNotFound, Status: http.StatusNotFound, Title: "Vendor Not Found"},
		httpx.ErrorMapping{Err: ErrBillNotFound, Status: http.StatusNotFound, Title: "Bill Not Found"},
		httpx.ErrorMapping{Err: ErrVendorExists, Status: http.StatusConflict, Title: "Vendor Exists"},
		httpx.ErrorMapping{Err: ErrDuplicateBillNumber, Status: http.StatusConflict, Title: "Duplicate Bill Number"},
		httpx.ErrorMapping{Err: ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid Status"},
		httpx.ErrorMapping{Err: ErrInvalidVendor, Status: http.StatusUnprocessableEntity, Title: "Invalid Vendor"},
		httpx.ErrorMapping{Err: ErrInvalidBill, Status: http.StatusUnprocessableEntity, Title: "Invalid Bill"},
		httpx.ErrorMapping{Err: ErrInvalidPayment, Status: http.StatusUnprocessableEntity, Title: "Invalid Payment"},
		httpx.ErrorMapping{Err: ErrOverpayment, Status: http.StatusUnprocessableEntity, Title: "Overpayment"},
	)
}
