package ar

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

var (
	ErrCustomerNotFound       = errors.New("ar: customer not found")
	ErrCustomerExists         = errors.New("ar: customer already registered")
	ErrInvalidCustomer        = errors.New("ar: invalid customer")
	ErrInvoiceNotFound        = errors.New("ar: invoice not found")
	ErrDuplicateInvoiceNumber = errors.New("ar: invoice number already used")
	ErrInvalidStatus          = errors.New("ar: invalid status for operation")
	ErrInvalidInvoice         = errors.New("ar: invalid invoice")
	ErrInvalidPayment         = errors.New("ar: invalid payment")
	ErrOverpayment            = errors.New("ar: payment exceeds remaining amount")
	ErrCreditLimitExceeded    = errors.New("ar: credit limit exceeded")
)

func init() {
	httpx.RegisterErrors(
		httpx.ErrorMapping{Err: ErrCustomerNotFound, Status: http.StatusNotFound, Title: "Customer Not Found"},
		httpx.ErrorMapping{Err: ErrInvoiceNotFound, Status: http.StatusNotFound, Title: "Invoice Not Found"},
		httpx.ErrorMapping{Err: ErrCustomerExists, Status: http.StatusConflict, Title: "Customer Exists"},
		httpx.ErrorMapping{Err: ErrDuplicateInvoiceNumber, Status: http.StatusConflict, Title: "Duplicate Invoice Number"},
		httpx.ErrorMapping{Err: ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid Status"},
		httpx.ErrorMapping{Err: ErrInvalidCustomer, Status: http.StatusUnprocessableEntity, Title: "Invalid Customer"},
		httpx.ErrorMapping{Err: ErrInvalidInvoice, Status: http.StatusUnprocessableEntity, Title: "Invalid Invoice"},
		httpx.ErrorMapping{Err: ErrInvalidPayment, Status: http.StatusUnprocessableEntity, Title: "Invalid Payment"},
		httpx.ErrorMapping{Err: ErrOverpayment, Status: http.StatusUnprocessableEntity, Title: "Overpayment"},
		httpx.ErrorMapping{Err: ErrCreditLimitExceeded, Status: http.StatusUnprocessableEntity, Title: "Credit Limit Exceeded"},
	)
}
