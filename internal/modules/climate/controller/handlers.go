package controller

import (
	"log/slog"
	"net/http"

	"surfsup-server/internal/modules/climate/types"
	"surfsup-server/internal/utils"
)

func (c *climateControllerImpl) handleHome(w http.ResponseWriter, r *http.Request) {
	slog.Debug("home requested", "remote", r.RemoteAddr)
	utils.WriteText(w, http.StatusOK, routeListing())
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	readings, err := c.service.RecentPrecipitation(r.Context())
	if err != nil {
		c.writeServiceError(w, "precipitation", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.service.ListStations(r.Context())
	if err != nil {
		c.writeServiceError(w, "stations", err)
		return
	}
	if stations == nil {
		stations = []types.Station{}
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *climateControllerImpl) handleStationActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := c.service.StationActivity(r.Context())
	if err != nil {
		c.writeServiceError(w, "station_activity", err)
		return
	}
	if activity == nil {
		activity = []types.StationActivity{}
	}
	utils.WriteJSON(w, http.StatusOK, activity)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	readings, err := c.service.RecentTemperatureAtBusiestStation(r.Context())
	if err != nil {
		c.writeServiceError(w, "tobs", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *climateControllerImpl) handleSummarySince(w http.ResponseWriter, r *http.Request) {
	start := r.PathValue("start")
	summary, err := c.service.TemperatureSummarySince(r.Context(), start)
	if err != nil {
		c.writeServiceError(w, "summary_since", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, []types.TemperatureSummary{summary})
}

func (c *climateControllerImpl) handleSummaryRange(w http.ResponseWriter, r *http.Request) {
	start := r.PathValue("start")
	end := r.PathValue("end")
	summary, err := c.service.TemperatureSummaryRange(r.Context(), start, end)
	if err != nil {
		c.writeServiceError(w, "summary_range", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, []types.TemperatureSummary{summary})
}
