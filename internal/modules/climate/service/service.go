package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"surfsup-server/internal/modules/climate/repository"
	"surfsup-server/internal/modules/climate/types"
)

var (
	// ErrDataUnavailable means the snapshot could not be reached or holds no
	// measurements where an aggregate needs at least one.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNotFound means a date-bounded summary matched no measurements.
	ErrNotFound = errors.New("no matching measurements")
	// ErrMalformedInput means a date could not be used as given.
	ErrMalformedInput = errors.New("malformed input")
)

// trailingWindowDays is the length of the trailing-year window.
const trailingWindowDays = 365

// Handle hands out connections onto the dataset. *sql.DB satisfies it.
type Handle interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

type QueryService interface {
	ListStations(ctx context.Context) ([]types.Station, error)
	StationActivity(ctx context.Context) ([]types.StationActivity, error)
	RecentPrecipitation(ctx context.Context) ([]types.PrecipitationReading, error)
	RecentTemperatureAtBusiestStation(ctx context.Context) ([]types.TemperatureReading, error)
	TemperatureSummarySince(ctx context.Context, start string) (types.TemperatureSummary, error)
	TemperatureSummaryRange(ctx context.Context, start string, end string) (types.TemperatureSummary, error)
}

type Service struct {
	handle        Handle
	newRepository func(repository.Querier) repository.ClimateRepository
	logger        *slog.Logger
}

func NewService(handle Handle, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		handle:        handle,
		newRepository: repository.NewRepository,
		logger:        logger,
	}
}

// withRepository runs fn against a repository bound to a connection that is
// held only for the duration of fn.
func (s *Service) withRepository(ctx context.Context, fn func(repository.ClimateRepository) error) error {
	conn, err := s.handle.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire connection: %w", ErrDataUnavailable, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Error("release connection", "error", err)
		}
	}()
	return fn(s.newRepository(conn))
}

func (s *Service) ListStations(ctx context.Context) ([]types.Station, error) {
	var out []types.Station
	err := s.withRepository(ctx, func(repo repository.ClimateRepository) error {
		var err error
		out, err = repo.GetStations(ctx)
		return err
	})
	return out, err
}

// StationActivity lists every station with its measurement count, most active
// first, ties by station id.
func (s *Service) StationActivity(ctx context.Context) ([]types.StationActivity, error) {
	var out []types.StationActivity
	err := s.withRepository(ctx, func(repo repository.ClimateRepository) error {
		var err error
		out, err = repo.GetStationActivity(ctx)
		return err
	})
	return out, err
}

func (s *Service) RecentPrecipitation(ctx context.Context) ([]types.PrecipitationReading, error) {
	var out []types.PrecipitationReading
	err := s.withRepository(ctx, func(repo repository.ClimateRepository) error {
		cutoff, err := trailingYearCutoff(ctx, repo)
		if err != nil {
			return err
		}
		out, err = repo.GetPrecipitationSince(ctx, cutoff)
		return err
	})
	return out, err
}

// RecentTemperatureAtBusiestStation returns the trailing-year temperatures of
// the station with the most measurements overall. Ties go to the lexically
// smallest station id.
func (s *Service) RecentTemperatureAtBusiestStation(ctx context.Context) ([]types.TemperatureReading, error) {
	var out []types.TemperatureReading
	err := s.withRepository(ctx, func(repo repository.ClimateRepository) error {
		cutoff, err := trailingYearCutoff(ctx, repo)
		if err != nil {
			return err
		}
		station, err := repo.GetBusiestStation(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrNoRows) {
				return fmt.Errorf("%w: busiest station of empty dataset", ErrDataUnavailable)
			}
			return err
		}
		s.logger.Debug("busiest station", "station", station, "cutoff", cutoff)
		out, err = repo.GetStationTemperaturesSince(ctx, station, cutoff)
		return err
	})
	return out, err
}

func (s *Service) TemperatureSummarySince(ctx context.Context, start string) (types.TemperatureSummary, error) {
	from, err := normalizeDate(start)
	if err != nil {
		return types.TemperatureSummary{}, err
	}

	var temps []float64
	err = s.withRepository(ctx, func(repo repository.ClimateRepository) error {
		var err error
		temps, err = repo.GetTemperaturesSince(ctx, from)
		return err
	})
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	summary, ok := summarize(temps)
	if !ok {
		return types.TemperatureSummary{}, fmt.Errorf("%w: no temperatures on or after %q", ErrNotFound, from)
	}
	return summary, nil
}

// TemperatureSummaryRange summarizes temperatures with start <= date <= end.
func (s *Service) TemperatureSummaryRange(ctx context.Context, start string, end string) (types.TemperatureSummary, error) {
	from, err := normalizeDate(start)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	to, err := normalizeDate(end)
	if err != nil {
		return types.TemperatureSummary{}, err
	}

	var temps []float64
	err = s.withRepository(ctx, func(repo repository.ClimateRepository) error {
		var err error
		temps, err = repo.GetTemperaturesBetween(ctx, from, to)
		return err
	})
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	summary, ok := summarize(temps)
	if !ok {
		return types.TemperatureSummary{}, fmt.Errorf("%w: no temperatures between %q and %q", ErrNotFound, from, to)
	}
	return summary, nil
}

// trailingYearCutoff returns latest-date minus 365 calendar days, formatted
// as a storable date.
func trailingYearCutoff(ctx context.Context, repo repository.ClimateRepository) (string, error) {
	latest, err := repo.GetLatestDate(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return "", fmt.Errorf("%w: latest date of empty dataset", ErrDataUnavailable)
		}
		return "", err
	}
	return CutoffFrom(latest)
}

// CutoffFrom parses a YYYY-MM-DD date and returns the date 365 days earlier.
func CutoffFrom(latest string) (string, error) {
	t, err := time.Parse(types.DateLayout, strings.TrimSpace(latest))
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrMalformedInput, latest)
	}
	return t.AddDate(0, 0, -trailingWindowDays).Format(types.DateLayout), nil
}

// normalizeDate trims and lower-cases a date bound. The result is compared
// lexically against stored dates, so it is not parsed.
func normalizeDate(s string) (string, error) {
	out := strings.ToLower(strings.TrimSpace(s))
	if out == "" {
		return "", fmt.Errorf("%w: empty date", ErrMalformedInput)
	}
	return out, nil
}

func summarize(temps []float64) (types.TemperatureSummary, bool) {
	if len(temps) == 0 {
		return types.TemperatureSummary{}, false
	}
	return types.TemperatureSummary{
		Min: floats.Min(temps),
		Max: floats.Max(temps),
		Avg: stat.Mean(temps, nil),
	}, true
}
