package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"genbroker/internal/domain"
	"genbroker/internal/infra"
	"genbroker/internal/queue"
)

// App is the handler container holding the service dependencies.
type App struct {
	Queue  *queue.Service
	Store  *infra.ObjectStore
	DB     *pgxpool.Pool
	Logger zerolog.Logger
}

// NewApp wires the handler container.
func NewApp(q *queue.Service, store *infra.ObjectStore, db *pgxpool.Pool, logger zerolog.Logger) *App {
	return &App{Queue: q, Store: store, DB: db, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Job     any    `json:"job,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

// domainError maps domain sentinel errors onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrBlocked):
		a.error(w, http.StatusForbidden, "blocked", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrQueueUnavailable):
		a.error(w, http.StatusServiceUnavailable, "queue_unavailable", "the queue is not accepting new requests")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
