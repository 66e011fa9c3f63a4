package journals

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r.Route("/journals", h.MountRoutes)
	return r
}

func TestHandlerCreateAndPost(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	body := `{"journal_name":"General Journal","date":"2024-04-01","description":"cash sale","post":true,
"lines":[{"account_id":` + itoa(f.cash.ID) + `,"debit":"19.99"},{"account_id":` + itoa(f.revenue.ID) + `,"credit":"19.99"}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Entry      JournalEntry `json:"entry"`
		TotalDebit string       `json:"total_debit"`
		Balanced   bool         `json:"balanced"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, EntryStatusPosted, resp.Entry.Status)
	assert.Equal(t, "19.99", resp.TotalDebit)
	assert.True(t, resp.Balanced)
	assert.Equal(t, "19.99", f.repo.balance(f.cash.ID))
}

func TestHandlerMapsDomainErrors(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	entry := f.draft(t, day(2024, 4, 1), debit(f.cash.ID, "10"), credit(f.revenue.ID, "5"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/"+itoa(entry.ID)+"/post", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/"+itoa(entry.ID)+"/reverse", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journals/777", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/", strings.NewReader(`{"journal_name":"X","date":"2024-04-01","lines":[{"account_id":1}]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
