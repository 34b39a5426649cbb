package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"surfsup-server/internal/modules/climate/service"
	"surfsup-server/internal/utils"
)

var routes = []string{
	apiPrefix + "/precipitation",
	apiPrefix + "/stations",
	apiPrefix + "/stations/activity",
	apiPrefix + "/tobs",
	apiPrefix + "/<start>",
	apiPrefix + "/<start>/<end>",
}

func routeListing() string {
	var b strings.Builder
	b.WriteString("Available Routes:\n")
	for _, r := range routes {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	return b.String()
}

// classify maps a service error onto its HTTP status and metric label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMalformedInput):
		return http.StatusBadRequest, "malformed_input"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrDataUnavailable):
		return http.StatusInternalServerError, "data_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (c *climateControllerImpl) writeServiceError(w http.ResponseWriter, operation string, err error) {
	status, kind := classify(err)
	if c.metrics != nil {
		c.metrics.QueryErrors.WithLabelValues(operation, kind).Inc()
	}

	if status >= http.StatusInternalServerError {
		slog.Error("query failed", "operation", operation, "kind", kind, "error", err)
		msg := "internal error"
		if kind == "data_unavailable" {
			msg = "dataset unavailable"
		}
		utils.WriteError(w, status, msg)
		return
	}
	slog.Info("query rejected", "operation", operation, "kind", kind, "error", err)
	utils.WriteError(w, status, err.Error())
}
