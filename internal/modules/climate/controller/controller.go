package controller

import (
	"net/http"

	"surfsup-server/internal/modules/climate/service"
	"surfsup-server/internal/observability"
)

const apiPrefix = "/api/v1.0"

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	service service.QueryService
	metrics *observability.Metrics
}

// NewClimateController wires the query service to HTTP. metrics may be nil.
func NewClimateController(svc service.QueryService, metrics *observability.Metrics) ClimateController {
	return &climateControllerImpl{service: svc, metrics: metrics}
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleHome)
	mux.HandleFunc("GET "+apiPrefix+"/precipitation", c.handlePrecipitation)
	mux.HandleFunc("GET "+apiPrefix+"/stations", c.handleStations)
	mux.HandleFunc("GET "+apiPrefix+"/stations/activity", c.handleStationActivity)
	mux.HandleFunc("GET "+apiPrefix+"/tobs", c.handleTobs)
	mux.HandleFunc("GET "+apiPrefix+"/{start}", c.handleSummarySince)
	mux.HandleFunc("GET "+apiPrefix+"/{start}/{end}", c.handleSummaryRange)
}
