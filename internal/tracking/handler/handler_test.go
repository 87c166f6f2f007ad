package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rumbo/internal/platform/logger"
	"rumbo/internal/tracking/models"
	"rumbo/internal/tracking/service"
	"rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

// stubService records calls and returns canned results.
type stubService struct {
	lastSubject domain.SubjectID
	lastPackage domain.PackageID
	limit       int
	windowHours int

	liveResult    models.LiveLocation
	directResult  models.PersistedLocation
	position      service.Position
	history       []models.PersistedLocation
	err           error
}

func (s *stubService) RecordLive(_ context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.LiveLocation, error) {
	s.lastSubject, s.lastPackage = subjectID, packageID
	return s.liveResult, s.err
}

func (s *stubService) RecordDirect(_ context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.PersistedLocation, error) {
	s.lastSubject, s.lastPackage = subjectID, packageID
	return s.directResult, s.err
}

func (s *stubService) LastKnown(_ context.Context, subjectID domain.SubjectID) (service.Position, error) {
	s.lastSubject = subjectID
	return s.position, s.err
}

func (s *stubService) History(_ context.Context, subjectID domain.SubjectID, limit, windowHours int) ([]models.PersistedLocation, error) {
	s.lastSubject, s.limit, s.windowHours = subjectID, limit, windowHours
	return s.history, s.err
}

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, logger.New()).Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) (string, []dErrors.FieldError) {
	t.Helper()
	var body struct {
		Error  string               `json:"error"`
		Fields []dErrors.FieldError `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error, body.Fields
}

func TestHandleRecordLocation(t *testing.T) {
	t.Run("valid payload returns created record", func(t *testing.T) {
		svc := &stubService{directResult: models.PersistedLocation{
			ID:        41,
			SubjectID: 23,
			PackageID: 1,
			Latitude:  4.6505,
			Longitude: -74.0635,
			CreatedAt: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC),
		}}
		router := newTestRouter(svc)

		w := doJSON(t, router, http.MethodPost, "/track/locations",
			`{"subject_id": 23, "package_id": 1, "latitude": 4.6505, "longitude": -74.0635}`)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, domain.SubjectID(23), svc.lastSubject)
		assert.Equal(t, domain.PackageID(1), svc.lastPackage)

		var resp LocationResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, int64(41), resp.ID)
		assert.Equal(t, "created", resp.Status)
	})

	t.Run("missing fields produce a per-field error list", func(t *testing.T) {
		router := newTestRouter(&stubService{})

		w := doJSON(t, router, http.MethodPost, "/track/locations", `{"package_id": 1}`)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		code, fields := decodeErrorBody(t, w)
		assert.Equal(t, "validation_failed", code)
		require.Len(t, fields, 3)
		names := []string{fields[0].Field, fields[1].Field, fields[2].Field}
		assert.Equal(t, []string{"subject_id", "latitude", "longitude"}, names)
	})

	t.Run("out of range coordinates rejected", func(t *testing.T) {
		router := newTestRouter(&stubService{})

		w := doJSON(t, router, http.MethodPost, "/track/locations",
			`{"subject_id": 23, "latitude": 91.0, "longitude": -200.0}`)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		_, fields := decodeErrorBody(t, w)
		require.Len(t, fields, 2)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		router := newTestRouter(&stubService{})

		w := doJSON(t, router, http.MethodPost, "/track/locations", `{not json`)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleRecordLive(t *testing.T) {
	svc := &stubService{liveResult: models.NewLiveLocation(23, 1, 4.6505, -74.0635,
		time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC))}
	router := newTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/track/live",
		`{"subject_id": 23, "package_id": 1, "latitude": 4.6505, "longitude": -74.0635}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp LiveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(23), resp.SubjectID)
	assert.Equal(t, 4.6505, resp.Latitude)
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleLastKnown(t *testing.T) {
	t.Run("known position includes derived fields", func(t *testing.T) {
		svc := &stubService{position: service.Position{
			SubjectID:  23,
			PackageID:  1,
			Latitude:   4.6505,
			Longitude:  -74.0635,
			CapturedAt: time.Date(2026, 2, 10, 7, 57, 0, 0, time.UTC),
			Source:     "live",
			IsRecent:   true,
			MinutesAgo: 3,
		}}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/track/subjects/23/last", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp LastKnownResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.IsRecent)
		assert.Equal(t, 3, resp.MinutesAgo)
		assert.Equal(t, "3 minutes ago", resp.RelativeAge)
		assert.Equal(t, "live", resp.Source)
	})

	t.Run("missing subject is a 404, not a validation error", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeNotFound, "no known position for subject")}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/track/subjects/404/last", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-integer subject id is a bad request", func(t *testing.T) {
		router := newTestRouter(&stubService{})

		req := httptest.NewRequest(http.MethodGet, "/track/subjects/abc/last", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleHistory(t *testing.T) {
	t.Run("bounds are enforced on query params", func(t *testing.T) {
		router := newTestRouter(&stubService{})

		for _, path := range []string{
			"/track/subjects/23/history?limit=0",
			"/track/subjects/23/history?limit=101",
			"/track/subjects/23/history?hours=0",
			"/track/subjects/23/history?hours=169",
			"/track/subjects/23/history?limit=abc",
		} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, path)
		}
	})

	t.Run("defaults forwarded when params absent", func(t *testing.T) {
		svc := &stubService{}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/track/subjects/23/history", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, service.DefaultHistoryLimit, svc.limit)
		assert.Equal(t, service.DefaultWindowHours, svc.windowHours)
	})

	t.Run("records carry derived age fields", func(t *testing.T) {
		svc := &stubService{history: []models.PersistedLocation{{
			ID:        1,
			SubjectID: 23,
			Latitude:  4.65,
			Longitude: -74.06,
			CreatedAt: time.Now().Add(-90 * time.Minute),
		}}}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/track/subjects/23/history?limit=5&hours=4", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp HistoryResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, 90, resp.Locations[0].MinutesAgo)
		assert.Equal(t, "1 hour ago", resp.Locations[0].RelativeAge)
		assert.Equal(t, 5, svc.limit)
		assert.Equal(t, 4, svc.windowHours)
	})
}
