package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rumbo/internal/tracking/models"
	"rumbo/internal/tracking/service"
	"rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/requestcontext"
)

// Service defines the interface for tracking operations.
type Service interface {
	RecordLive(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.LiveLocation, error)
	RecordDirect(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.PersistedLocation, error)
	LastKnown(ctx context.Context, subjectID domain.SubjectID) (service.Position, error)
	History(ctx context.Context, subjectID domain.SubjectID, limit, windowHours int) ([]models.PersistedLocation, error)
}

// Handler wires tracking endpoints to the tracking service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a tracking handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts tracking endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/track/live", h.HandleRecordLive)
	r.Post("/track/locations", h.HandleRecordLocation)
	r.Get("/track/subjects/{subjectID}/last", h.HandleLastKnown)
	r.Get("/track/subjects/{subjectID}/history", h.HandleHistory)
}

// HandleRecordLive handles POST /track/live requests (fast, ephemeral path).
func (h *Handler) HandleRecordLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	loc, err := h.service.RecordLive(ctx, req.ParsedSubjectID(), req.ParsedPackageID(), *req.Latitude, *req.Longitude)
	if err != nil {
		h.logger.ErrorContext(ctx, "live location write failed",
			"request_id", requestID,
			"subject_id", req.ParsedSubjectID(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromLive(loc))
}

// HandleRecordLocation handles POST /track/locations requests (direct,
// immediately durable path).
func (h *Handler) HandleRecordLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.RecordDirect(ctx, req.ParsedSubjectID(), req.ParsedPackageID(), *req.Latitude, *req.Longitude)
	if err != nil {
		h.logger.ErrorContext(ctx, "direct location write failed",
			"request_id", requestID,
			"subject_id", req.ParsedSubjectID(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "location recorded",
		"request_id", requestID,
		"subject_id", rec.SubjectID,
		"location_id", rec.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromPersisted(rec))
}

// HandleLastKnown handles GET /track/subjects/{subjectID}/last requests.
func (h *Handler) HandleLastKnown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	pos, err := h.service.LastKnown(ctx, subjectID)
	if err != nil {
		if de, ok := dErrors.AsError(err); !ok || de.Code != dErrors.CodeNotFound {
			h.logger.ErrorContext(ctx, "last known position query failed",
				"request_id", requestcontext.RequestID(ctx),
				"subject_id", subjectID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromPosition(pos))
}

// HandleHistory handles GET /track/subjects/{subjectID}/history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	limit, windowHours, err := historyParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recs, err := h.service.History(ctx, subjectID, limit, windowHours)
	if err != nil {
		h.logger.ErrorContext(ctx, "location history query failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromHistory(int64(subjectID), recs, requestcontext.Now(ctx)))
}

func (h *Handler) subjectParam(w http.ResponseWriter, r *http.Request) (domain.SubjectID, bool) {
	raw := chi.URLParam(r, "subjectID")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject id must be an integer"))
		return 0, false
	}
	subjectID, err := domain.ParseSubjectID(n)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject id must be a positive integer"))
		return 0, false
	}
	return subjectID, true
}

// historyParams parses and bounds the limit and hours query parameters.
func historyParams(r *http.Request) (limit, windowHours int, err error) {
	limit, err = queryInt(r, "limit", service.DefaultHistoryLimit, 1, service.MaxHistoryLimit)
	if err != nil {
		return 0, 0, err
	}
	windowHours, err = queryInt(r, "hours", service.DefaultWindowHours, 1, service.MaxWindowHours)
	if err != nil {
		return 0, 0, err
	}
	return limit, windowHours, nil
}

func queryInt(r *http.Request, name string, fallback, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.NewValidation("invalid query parameters",
			dErrors.FieldError{Field: name, Message: "must be an integer"})
	}
	if n < min || n > max {
		return 0, dErrors.NewValidation("invalid query parameters",
			dErrors.FieldError{Field: name, Message: "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)})
	}
	return n, nil
}
