package climate

import (
	"database/sql"
	"log/slog"
	"net/http"

	"surfsup-server/internal/modules/climate/controller"
	"surfsup-server/internal/modules/climate/service"
	"surfsup-server/internal/observability"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, metrics *observability.Metrics) {
	climateService := service.NewService(db, slog.Default().With("module", "climate"))
	climateController := controller.NewClimateController(climateService, metrics)
	climateController.RegisterRoutes(mux)
}
