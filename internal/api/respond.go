package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps store sentinels to statuses. Anything unrecognised
// is logged and reported as a bare 500.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrMemberNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCategoryNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrCartEntryNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrMemberExists),
		errors.Is(err, database.ErrProductExists),
		errors.Is(err, database.ErrCategoryExists),
		errors.Is(err, database.ErrAlreadyReviewed):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, database.ErrNotPurchased):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrInvalidCursor):
		respondError(w, http.StatusBadRequest, store.ErrInvalidCursor.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"route", routePattern(r),
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt reads a positive integer parameter. Missing or invalid values
// yield def; values above a positive max are clamped to it.
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func queryID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
