// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"sync"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
)

// ErrorMapping ties a domain sentinel to a problem status.
type ErrorMapping struct {
	Err    error
	Status int
	Title  string
}

var (
	mappingsMu sync.RWMutex
	mappings   = []ErrorMapping{
		{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
		{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
		{Err: ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
		{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
		{Err: ErrBadRequest, Status: http.StatusBadRequest, Title: "Bad Request"},
	}
)

// RegisterErrors adds domain mappings. Domain packages call it from init.
// Later registrations take precedence.
func RegisterErrors(m ...ErrorMapping) {
	mappingsMu.Lock()
	defer mappingsMu.Unlock()
	mappings = append(m, mappings...)
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	mappingsMu.RLock()
	defer mappingsMu.RUnlock()
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			Problem(w, m.Status, m.Title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
