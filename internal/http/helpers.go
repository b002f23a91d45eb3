package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sitebook/internal/core"
	"sitebook/internal/services"
	"sitebook/internal/storage"
)

// parseDateParam reads a YYYY-MM-DD parameter from the query string or
// form body. Absent or malformed values fall back to today; day entry
// always has a sensible target.
func parseDateParam(r *http.Request, name string) core.Date {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return core.Today()
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Today()
	}
	return d
}

// parseIDParam reads a numeric id parameter; 0 when absent or malformed.
func parseIDParam(r *http.Request, name string) int64 {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseMoneyParam reads a decimal amount parameter; zero when absent or
// malformed, bad numbers never fail a request.
func parseMoneyParam(r *http.Request, name string) core.Money {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return core.Money{}
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return core.Money{}
	}
	return m
}

func parseBoolParam(r *http.Request, name string) bool {
	v := strings.TrimSpace(r.FormValue(name))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, services.ErrTeamInUse),
		errors.Is(err, services.ErrDepartmentInUse),
		errors.Is(err, services.ErrReservedDepartment):
		status = http.StatusConflict
	case errors.Is(err, services.ErrRateNotConfigured):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidRate),
		errors.Is(err, core.ErrBadDate),
		errors.Is(err, core.ErrInvalidAmount):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "url", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
