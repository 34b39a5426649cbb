package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"surfsup-server/internal/utils"
)

const readinessTimeout = 2 * time.Second

// ErrNoMeasurements is reported by the dataset readiness check when the
// snapshot opens but holds nothing to serve.
var ErrNoMeasurements = errors.New("dataset has no measurements")

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
	handleReadyz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db    *sql.DB
	ready ReadinessChecker
}

func NewHealthchecker(db *sql.DB, ready ReadinessChecker) healthchecker {
	return &healthcheckerImpl{db: db, ready: ready}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *healthcheckerImpl) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.ready.CheckReadiness(ctx); err != nil {
		slog.Warn("not ready", "error", err)
		utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// DatasetReadiness is ready once the snapshot holds at least one measurement.
type DatasetReadiness struct {
	DB *sql.DB
}

func (d DatasetReadiness) CheckReadiness(ctx context.Context) error {
	var exists bool
	if err := d.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM measurement)`).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNoMeasurements
	}
	return nil
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, ready ReadinessChecker) {
	healthchecker := NewHealthchecker(db, ready)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
	mux.HandleFunc("GET /readyz", healthchecker.handleReadyz)
}
