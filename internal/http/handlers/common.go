package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/iago/review-radar-back/internal/domain"
	"github.com/iago/review-radar-back/internal/http/middleware"
	"github.com/iago/review-radar-back/internal/repository"
	"github.com/iago/review-radar-back/internal/service"
	"go.uber.org/zap"
)

const (
	maxBodyBytes      = 1 << 20
	msgInvalidPayload = "Invalid JSON payload"
)

type API struct {
	jobsService *service.JobsService
	health      repository.HealthChecker
	logger      *zap.Logger
}

// NewAPI builds the handlers. health may be nil when the store has no remote
// engine to probe.
func NewAPI(jobsService *service.JobsService, health repository.HealthChecker, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		jobsService: jobsService,
		health:      health,
		logger:      logger,
	}
}

type errorPayload struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSON(w, statusCode, errorPayload{
		Success:   false,
		Message:   message,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// writeServiceError maps domain errors to status codes. Anything unexpected
// is logged and reported without internal details.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, r, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &notFoundErr):
		writeError(w, r, http.StatusNotFound, "Analysis not found")
	default:
		api.logger.Error(fallback,
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, value any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}
