package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const maxRequestBody = 1 << 20

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", slog.Any("error", err))
	app.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.writeJSON(w, r, status, errorResponse{Error: message})
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response", slog.Any("error", err))
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// parseUUIDParam parses a path parameter as a UUID. On failure it responds
// 404 and returns false.
func (app *application) parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		app.clientError(w, r, http.StatusNotFound, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// parseDateParam parses a YYYY-MM-DD path parameter. On failure it responds
// 404 and returns false.
func (app *application) parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	date, err := time.Parse(time.DateOnly, r.PathValue(name))
	if err != nil {
		app.clientError(w, r, http.StatusNotFound, fmt.Sprintf("invalid %s", name))
		return time.Time{}, false
	}
	return date, true
}

// mapDomainError translates a plan engine error into an HTTP response.
// Returns true when the error was handled as a client error.
func (app *application) mapDomainError(w http.ResponseWriter, r *http.Request, err error, notFound, conflict error) bool {
	switch {
	case notFound != nil && errors.Is(err, notFound):
		app.clientError(w, r, http.StatusNotFound, err.Error())
		return true
	case conflict != nil && errors.Is(err, conflict):
		app.clientError(w, r, http.StatusConflict, err.Error())
		return true
	}
	return false
}
