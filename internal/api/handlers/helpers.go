package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"manifest-route-service/internal/domain"
	"net/http"
)

const maxBodyBytes = 2 << 20

type ctxKey string

const userIDKey ctxKey = "user_id"

// WithUserID attaches the authenticated caller to the request context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated caller, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "encode failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object with no unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// writeServiceError maps domain error kinds to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var partial *domain.PartialPlanError

	switch {
	case errors.As(err, &partial):
		writeJSON(w, r, http.StatusBadGateway, map[string]any{
			"error":               "route solver could not place every stop, retry later",
			"unassigned_stop_ids": partial.Unassigned,
		})
	case errors.Is(err, domain.ErrInput):
		var ie *domain.InputError
		if errors.As(err, &ie) {
			writeJSON(w, r, http.StatusUnprocessableEntity, map[string]string{
				"error":   ie.Error(),
				"stop_id": ie.StopID,
				"address": ie.Address,
			})
			return
		}
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "route belongs to another user")
	case errors.Is(err, domain.ErrRunInProgress):
		writeError(w, r, http.StatusConflict, "an optimization is already running for this route")
	case errors.Is(err, domain.ErrLeaseLost):
		writeError(w, r, http.StatusConflict, "route lease lost, retry")
	case errors.Is(err, domain.ErrNoCredential):
		writeError(w, r, http.StatusServiceUnavailable, "no routing provider key configured")
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrProtocol):
		slog.WarnContext(r.Context(), "provider failure", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusBadGateway, "service unavailable, retry")
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
