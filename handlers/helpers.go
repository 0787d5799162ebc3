package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vinotracker/middleware"
	"vinotracker/models"
	"vinotracker/store"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps store error kinds to HTTP statuses. Handlers never look
// at driver error strings; the kind decided at the store boundary is the
// whole contract.
func respondError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch store.KindOf(err) {
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindConflict:
		status = http.StatusConflict
	case store.KindValidation:
		status = http.StatusUnprocessableEntity
	case store.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "status", status, "error", err)
	}
	respondJSON(w, status, errorResponse{Error: publicMessage(err, status)})
}

func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	var se *store.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func unprocessable(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON")
		return false
	}
	return true
}

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// pathUUID extracts and parses a UUID route variable, writing the 400 itself
// on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	if err != nil {
		badRequest(w, "invalid "+key)
		return uuid.Nil, false
	}
	return id, true
}

// requestUser returns the caller's id and whether they hold the admin role.
func requestUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool, bool) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return uuid.Nil, false, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return uuid.Nil, false, false
	}
	return id, claims.Role == string(models.RoleAdmin), true
}
