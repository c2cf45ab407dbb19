package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/learning"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string        `json:"error"`
	Code      string        `json:"code"`
	Retryable bool          `json:"retryable,omitempty"`
	Details   []FieldDetail `json:"details,omitempty"`
}

// FieldDetail describes one invalid request field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse(err))
		return false
	}
	return true
}

func validationResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: "request validation failed", Code: "validation_failed"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			resp.Details = append(resp.Details, FieldDetail{Field: e.Field(), Message: fieldMessage(e)})
		}
	}
	return resp
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "dive":
		return "Invalid item"
	case "oneof":
		return "Must be one of: " + e.Param()
	default:
		return "Invalid value"
	}
}

// writeError maps domain errors to HTTP statuses. External failures are
// checked before validation because generated-content rejections carry both.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, ai.ErrBudgetExceeded):
		return http.StatusTooManyRequests, ErrorResponse{Error: "daily AI token budget exceeded", Code: "budget_exceeded"}
	case errors.Is(err, ai.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: "too many requests, please try again in a moment", Code: "rate_limited", Retryable: true}
	case errors.Is(err, learning.ErrExternalService), errors.Is(err, ai.ErrQuotaExceeded), errors.Is(err, ai.ErrNoProvider):
		return http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "external_service", Retryable: true}
	case errors.Is(err, learning.ErrInvalidScore):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_score"}
	case errors.Is(err, learning.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_failed"}
	case errors.Is(err, learning.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, learning.ErrAttemptsExhausted):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "attempts_exhausted"}
	case errors.Is(err, learning.ErrConflict):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"}
	}
}
