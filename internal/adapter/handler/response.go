package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/logger"
)

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details any               `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type shortageDetails struct {
	Part      string `json:"jwl_part"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised is
// an internal error.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDateFormat),
		errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateRequest), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Success: false, Error: err.Error()}

	var fields domain.ValidationErrors
	if errors.As(err, &fields) {
		resp.Error = "validation failed"
		resp.Fields = fields
	}

	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		resp.Details = shortageDetails{Part: short.Part, Available: short.Available, Requested: short.Requested}
	}

	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		resp.Error = "internal server error"
	}

	writeJSON(w, status, resp)
}

// decodeJSON reads a single JSON object; malformed bodies are validation
// errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ValidationErrors{"body": "request body is required"}
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.ValidationErrors{"body": "invalid request body"}
	}
	return nil
}

func domainError(sentinel error, message string) error {
	return fmt.Errorf("%w: %s", sentinel, message)
}
