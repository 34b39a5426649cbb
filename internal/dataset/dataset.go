// Package dataset builds hawaii.sqlite snapshots: it creates the station and
// measurement tables and loads them from the station/measurement CSV exports.
// The HTTP service only ever reads the result.
package dataset

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/schema.sql
var schemaSQL string

const dateLayout = "2006-01-02"

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Init creates the tables and indexes if they do not exist yet.
func Init(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// StationRow is one line of the stations CSV.
type StationRow struct {
	Station   string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
}

// MeasurementRow is one line of the measurements CSV. A nil Precipitation is
// stored as NULL.
type MeasurementRow struct {
	Station       string
	Date          string
	Precipitation *float64
	Temperature   float64
}

// ImportStations reads a CSV with the header station,name,latitude,longitude,elevation
// (any column order) and inserts every row in one transaction.
func ImportStations(ctx context.Context, db *sql.DB, r io.Reader) (int, error) {
	rows, err := readStations(r)
	if err != nil {
		return 0, err
	}
	return len(rows), InsertStations(ctx, db, rows)
}

// ImportMeasurements reads a CSV with the header station,date,prcp,tobs (any
// column order) and inserts every row in one transaction.
func ImportMeasurements(ctx context.Context, db *sql.DB, r io.Reader) (int, error) {
	rows, err := readMeasurements(r)
	if err != nil {
		return 0, err
	}
	return len(rows), InsertMeasurements(ctx, db, rows)
}

func InsertStations(ctx context.Context, db *sql.DB, rows []StationRow) error {
	return inTx(ctx, db, `INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			s := rows[i]
			_, err := stmt.ExecContext(ctx, s.Station, s.Name, s.Latitude, s.Longitude, s.Elevation)
			return err
		})
}

func InsertMeasurements(ctx context.Context, db *sql.DB, rows []MeasurementRow) error {
	return inTx(ctx, db, `INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			m := rows[i]
			var prcp any
			if m.Precipitation != nil {
				prcp = *m.Precipitation
			}
			_, err := stmt.ExecContext(ctx, m.Station, m.Date, prcp, m.Temperature)
			return err
		})
}

func inTx(ctx context.Context, db *sql.DB, query string, n int, insert func(stmt *sql.Stmt, i int) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("rollback import", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			slog.Error("close insert statement", "error", closeErr)
		}
	}()

	for i := 0; i < n; i++ {
		if err = insert(stmt, i); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func readStations(r io.Reader) ([]StationRow, error) {
	var out []StationRow
	err := readCSV(r, []string{"station", "name", "latitude", "longitude", "elevation"}, func(line int, get func(string) string) error {
		lat, err := parseFloat(get("latitude"), "latitude", line)
		if err != nil {
			return err
		}
		lon, err := parseFloat(get("longitude"), "longitude", line)
		if err != nil {
			return err
		}
		elev, err := parseFloat(get("elevation"), "elevation", line)
		if err != nil {
			return err
		}
		id := get("station")
		if id == "" {
			return fmt.Errorf("line %d: empty station", line)
		}
		out = append(out, StationRow{
			Station:   id,
			Name:      get("name"),
			Latitude:  lat,
			Longitude: lon,
			Elevation: elev,
		})
		return nil
	})
	return out, err
}

func readMeasurements(r io.Reader) ([]MeasurementRow, error) {
	var out []MeasurementRow
	err := readCSV(r, []string{"station", "date", "prcp", "tobs"}, func(line int, get func(string) string) error {
		date := get("date")
		if _, err := time.Parse(dateLayout, date); err != nil {
			return fmt.Errorf("line %d: invalid date %q (expected YYYY-MM-DD)", line, date)
		}
		tobs, err := parseFloat(get("tobs"), "tobs", line)
		if err != nil {
			return err
		}
		var prcp *float64
		if s := get("prcp"); s != "" {
			v, err := parseFloat(s, "prcp", line)
			if err != nil {
				return err
			}
			prcp = &v
		}
		out = append(out, MeasurementRow{
			Station:       get("station"),
			Date:          date,
			Precipitation: prcp,
			Temperature:   tobs,
		})
		return nil
	})
	return out, err
}

// readCSV checks that the header carries every wanted column and calls fn for
// each record with a lookup by column name. Line numbers are 1-based and count
// the header.
func readCSV(r io.Reader, want []string, fn func(line int, get func(string) string) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty csv: missing header")
		}
		return fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range want {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("csv header missing column %q", col)
		}
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			return strings.TrimSpace(rec[index[col]])
		}
		if err := fn(line, get); err != nil {
			return err
		}
	}
}

func parseFloat(s, field string, line int) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s %q", line, field, s)
	}
	return v, nil
}
