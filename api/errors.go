package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/gatehouse/auth"
	"github.com/jmcleod/gatehouse/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}

// mapRegisterError translates registration failures. Infrastructure errors
// stay distinguishable from the uniqueness conflict so a database outage is
// never reported as "already registered".
func mapRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "email and password are required")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "email already registered")
	default:
		writeError(w, http.StatusInternalServerError, "failed to create user")
	}
}

func mapResetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "missing required field")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "failed to reset password")
	}
}
