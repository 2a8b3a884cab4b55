package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/boddenberg/profile-bff-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
	View   any                 `json:"form,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domain.ErrValidation{Field: "body", Message: "corpo da requisição inválido"}
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		return 0, &domain.ErrValidation{Field: name, Message: "índice inválido"}
	}
	return n, nil
}

// handleServiceError maps domain errors to HTTP responses. view, when not
// nil, is the form state after the failed operation and is sent along.
func handleServiceError(w http.ResponseWriter, err error, view any, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var validationSet *domain.ErrValidationSet
	var locked *domain.ErrFieldLocked
	var external *domain.ErrExternalService
	var unauthorized *domain.ErrUnauthorized

	resp := errorResponse{Error: err.Error(), View: view}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &validationSet):
		logger.Debug("validation failed", zap.String("error", err.Error()))
		status = http.StatusBadRequest
		resp.Fields = validationSet.Fields
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		status = http.StatusBadRequest
		resp.Error = validation.Message
		resp.Fields = []domain.FieldError{{Field: validation.Field, Message: validation.Message}}
	case errors.As(err, &locked):
		logger.Debug("field locked", zap.String("field", locked.Field))
		status = http.StatusConflict
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		status = http.StatusNotFound
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		status = http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		status = http.StatusGatewayTimeout
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		status = http.StatusBadGateway
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		status = http.StatusUnauthorized
	default:
		logger.Error("unhandled error", zap.Error(err))
		resp.Error = "internal server error"
	}

	writeJSON(w, status, resp)
}
