package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"surfsup-server/internal/modules/climate/types"
)

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-latest-date.sql
var getLatestDateSQL string

//go:embed sql/get-busiest-station.sql
var getBusiestStationSQL string

//go:embed sql/get-station-activity.sql
var getStationActivitySQL string

//go:embed sql/get-precipitation-since.sql
var getPrecipitationSinceSQL string

//go:embed sql/get-station-temperatures-since.sql
var getStationTemperaturesSinceSQL string

//go:embed sql/get-temperatures-since.sql
var getTemperaturesSinceSQL string

//go:embed sql/get-temperatures-between.sql
var getTemperaturesBetweenSQL string

// ErrNoRows is returned by aggregate lookups over an empty measurement table.
var ErrNoRows = errors.New("no measurements")

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type ClimateRepository interface {
	GetStations(ctx context.Context) ([]types.Station, error)
	GetLatestDate(ctx context.Context) (string, error)
	GetBusiestStation(ctx context.Context) (string, error)
	GetStationActivity(ctx context.Context) ([]types.StationActivity, error)
	GetPrecipitationSince(ctx context.Context, from string) ([]types.PrecipitationReading, error)
	GetStationTemperaturesSince(ctx context.Context, stationID string, from string) ([]types.TemperatureReading, error)
	GetTemperaturesSince(ctx context.Context, from string) ([]float64, error)
	GetTemperaturesBetween(ctx context.Context, from string, to string) ([]float64, error)
}

type repositoryImpl struct {
	q Querier
}

func NewRepository(q Querier) ClimateRepository {
	return &repositoryImpl{q: q}
}

func (r *repositoryImpl) GetStations(ctx context.Context) ([]types.Station, error) {
	rows, err := r.q.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer closeRows(rows, "stations")

	out := make([]types.Station, 0)
	for rows.Next() {
		var (
			s    types.Station
			name sql.NullString
		)
		if err := rows.Scan(&s.ID, &name, &s.Latitude, &s.Longitude, &s.Elevation); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		s.Name = name.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetLatestDate(ctx context.Context) (string, error) {
	var latest sql.NullString
	if err := r.q.QueryRowContext(ctx, getLatestDateSQL).Scan(&latest); err != nil {
		return "", fmt.Errorf("query latest date: %w", err)
	}
	if !latest.Valid {
		return "", ErrNoRows
	}
	return latest.String, nil
}

func (r *repositoryImpl) GetBusiestStation(ctx context.Context) (string, error) {
	var station string
	err := r.q.QueryRowContext(ctx, getBusiestStationSQL).Scan(&station)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoRows
		}
		return "", fmt.Errorf("query busiest station: %w", err)
	}
	return station, nil
}

func (r *repositoryImpl) GetStationActivity(ctx context.Context) ([]types.StationActivity, error) {
	rows, err := r.q.QueryContext(ctx, getStationActivitySQL)
	if err != nil {
		return nil, fmt.Errorf("query station activity: %w", err)
	}
	defer closeRows(rows, "station activity")

	out := make([]types.StationActivity, 0)
	for rows.Next() {
		var a types.StationActivity
		if err := rows.Scan(&a.ID, &a.Observations); err != nil {
			return nil, fmt.Errorf("scan station activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetPrecipitationSince(ctx context.Context, from string) ([]types.PrecipitationReading, error) {
	rows, err := r.q.QueryContext(ctx, getPrecipitationSinceSQL, from)
	if err != nil {
		return nil, fmt.Errorf("query precipitation: %w", err)
	}
	defer closeRows(rows, "precipitation")

	out := make([]types.PrecipitationReading, 0)
	for rows.Next() {
		var (
			rec  types.PrecipitationReading
			prcp sql.NullFloat64
		)
		if err := rows.Scan(&rec.Date, &prcp); err != nil {
			return nil, fmt.Errorf("scan precipitation: %w", err)
		}
		if prcp.Valid {
			v := prcp.Float64
			rec.Precipitation = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetStationTemperaturesSince(ctx context.Context, stationID string, from string) ([]types.TemperatureReading, error) {
	rows, err := r.q.QueryContext(ctx, getStationTemperaturesSinceSQL, stationID, from)
	if err != nil {
		return nil, fmt.Errorf("query station temperatures: %w", err)
	}
	defer closeRows(rows, "station temperatures")

	out := make([]types.TemperatureReading, 0)
	for rows.Next() {
		var rec types.TemperatureReading
		if err := rows.Scan(&rec.Date, &rec.Temperature); err != nil {
			return nil, fmt.Errorf("scan station temperature: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetTemperaturesSince(ctx context.Context, from string) ([]float64, error) {
	rows, err := r.q.QueryContext(ctx, getTemperaturesSinceSQL, from)
	if err != nil {
		return nil, fmt.Errorf("query temperatures: %w", err)
	}
	defer closeRows(rows, "temperatures")
	return scanTemperatures(rows)
}

func (r *repositoryImpl) GetTemperaturesBetween(ctx context.Context, from string, to string) ([]float64, error) {
	rows, err := r.q.QueryContext(ctx, getTemperaturesBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("query temperatures: %w", err)
	}
	defer closeRows(rows, "temperatures")
	return scanTemperatures(rows)
}

func scanTemperatures(rows *sql.Rows) ([]float64, error) {
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan temperature: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}
