package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/odometer"
)

// ErrorDetail is the machine-readable part of every error body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("handler: encode response", "error", err)
	}
}

// writeError maps a service error onto a status code and an ErrorResponse.
// notFound is the message used for domain.ErrNotFound, since the handler is
// the layer that knows what was being looked up.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status, code, msg := http.StatusInternalServerError, "internal_error", "internal server error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", notFound
	case errors.Is(err, domain.ErrValidation):
		status, code, msg = http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err)
	case errors.Is(err, odometer.ErrNoReading):
		status, code, msg = http.StatusBadGateway, "no_reading", unwrapMessage(err)
	case errors.Is(err, domain.ErrProviderUnavailable):
		status, code, msg = http.StatusBadGateway, "provider_unavailable", unwrapMessage(err)
	default:
		slog.ErrorContext(r.Context(), "unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}})
}

// writeRequestError answers 422 for a request rejected before it reaches the
// service layer (e.g. a malformed body or query parameter), or 413 when the
// body hit the size limit.
func writeRequestError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{Code: "body_too_large", Message: err.Error()}})
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{Code: "validation_error", Message: err.Error()}})
}

// unwrapMessage drops the "layer.Type.Method: " location prefixes and the
// sentinel text from a wrapped error, keeping the part meant for the client.
// e.g. "service.TripService.Start: validation error: vehicle_reg is required"
// becomes "vehicle_reg is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for {
		head, rest, ok := strings.Cut(msg, ": ")
		if !ok || strings.Count(head, ".") < 2 || strings.Contains(head, " ") {
			return strings.TrimPrefix(msg, domain.ErrValidation.Error()+": ")
		}
		msg = rest
	}
}

var errBodyRequired = errors.New("request body is required")

// decodeJSON reads a required JSON body into dst. Unknown fields are rejected
// so that typos in field names do not silently fall back to defaults.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes: %w", maxErr.Limit, err)
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := decodeJSON(r, dst)
	if errors.Is(err, errBodyRequired) {
		return nil
	}
	return err
}

// pathID binds the {id} path parameter.
func pathID(r *http.Request) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid format for parameter id: %v", err)
	}
	return id, nil
}

// queryParam binds an optional form-style query parameter into dst.
func queryParam(r *http.Request, name string, dst any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dst); err != nil {
		return fmt.Errorf("invalid format for parameter %s: %v", name, err)
	}
	return nil
}
