package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattle-scans/backend/internal/breed"
	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
	"github.com/cattle-scans/backend/internal/moderation"
	"github.com/cattle-scans/backend/internal/review"
)

// stubStore implements datastore.Interface for handler tests.
type stubStore struct {
	datastore.Interface

	updates []map[string]any
}

func (s *stubStore) GetScan(ctx context.Context, id uint) (datastore.Scan, error) {
	if id == 1 {
		return datastore.Scan{ID: 1, ImageURL: "u"}, nil
	}
	return datastore.Scan{}, errors.Newf("scan %d not found", id).
		Category(errors.CategoryNotFound).Build()
}

func (s *stubStore) UpdateScan(ctx context.Context, id uint, fields map[string]any) error {
	s.updates = append(s.updates, fields)
	return nil
}

func newTestController(store *stubStore) *Controller {
	return &Controller{
		DS:         store,
		reviews:    review.NewCoordinator(store),
		moderation: moderation.NewEngine(store, breed.NewRegistry(store), nil, moderation.Config{PageSize: 8}, nil),
		breeds:     breed.NewRegistry(store),
		apiLogger:  logging.ForService("api"),
	}
}

func newRequestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	c := newTestController(&stubStore{})
	ctx, rec := newRequestContext(http.MethodGet, "/healthz", "")

	require.NoError(t, c.HealthCheck(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestGetScanNotFound(t *testing.T) {
	t.Parallel()

	c := newTestController(&stubStore{})
	ctx, rec := newRequestContext(http.MethodGet, "/api/v2/scans/99", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("99")

	require.NoError(t, c.GetScan(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetHelpfulnessRequiresLogin(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	c := newTestController(store)
	ctx, rec := newRequestContext(http.MethodPost, "/api/v2/scans/1/helpful", `{"helpful":true}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("1")

	require.NoError(t, c.SetHelpfulness(ctx))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.updates)
}

func TestSetHelpfulness(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	c := newTestController(store)
	ctx, rec := newRequestContext(http.MethodPost, "/api/v2/scans/1/helpful", `{"helpful":true}`)
	ctx.Request().Header.Set(submitterHeader, "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("1")

	require.NoError(t, c.SetHelpfulness(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.updates, 1)
	assert.Equal(t, true, store.updates[0]["helpful"])
}

func TestSetFlagRequiresLogin(t *testing.T) {
	t.Parallel()

	c := newTestController(&stubStore{})
	ctx, rec := newRequestContext(http.MethodPost, "/api/v2/scans/1/flag", `{"flagged":true}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("1")

	require.NoError(t, c.SetFlag(ctx))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmRequiresLogin(t *testing.T) {
	t.Parallel()

	c := newTestController(&stubStore{})
	ctx, rec := newRequestContext(http.MethodPost, "/api/v2/moderation/confirm", `{"scan_id":1,"breed":"Gir"}`)

	require.NoError(t, c.ConfirmScan(ctx))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidScanID(t *testing.T) {
	t.Parallel()

	c := newTestController(&stubStore{})
	ctx, rec := newRequestContext(http.MethodGet, "/api/v2/scans/abc", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("abc")

	require.NoError(t, c.GetScan(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", errors.Newf("x").Category(errors.CategoryNotFound).Build(), http.StatusNotFound},
		{"validation", errors.Newf("x").Category(errors.CategoryValidation).Build(), http.StatusBadRequest},
		{"precondition", errors.Newf("x").Category(errors.CategoryPrecondition).Build(), http.StatusBadRequest},
		{"conflict", errors.Newf("x").Category(errors.CategoryConflict).Build(), http.StatusConflict},
		{"inference", errors.Newf("x").Category(errors.CategoryInference).Build(), http.StatusBadGateway},
		{"image store", errors.Newf("x").Category(errors.CategoryImageStore).Build(), http.StatusServiceUnavailable},
		{"database", errors.Newf("x").Category(errors.CategoryDatabase).Build(), http.StatusInternalServerError},
		{"plain", errors.NewStd("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestParseQueryDefaults(t *testing.T) {
	t.Parallel()

	ctx, _ := newRequestContext(http.MethodGet, "/api/v2/moderation/unconfirmed", "")
	q := parseQuery(ctx)

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, datastore.SortNewestFirst, q.Sort)
	assert.Equal(t, datastore.FlagAny, q.Flag)
	assert.Equal(t, datastore.HelpfulAny, q.Helpful)
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	target := "/api/v2/moderation/unconfirmed?flag=flagged&helpful=no&submitter=user-1&sort=asc&page=3"
	ctx, _ := newRequestContext(http.MethodGet, target, "")
	q := parseQuery(ctx)

	assert.Equal(t, datastore.FlagFlagged, q.Flag)
	assert.Equal(t, datastore.HelpfulNo, q.Helpful)
	assert.Equal(t, "user-1", q.Submitter)
	assert.Equal(t, datastore.SortOldestFirst, q.Sort)
	assert.Equal(t, 3, q.Page)
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	id := generateCorrelationID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, generateCorrelationID())
}
