package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"surfsup-server/internal/config"
	"surfsup-server/internal/dataset"
	"surfsup-server/internal/db"
)

const usage = `usage: %s <command>
  init                                  create the station and measurement tables
  import <stations.csv> <measurements.csv>  create tables if needed and load both CSV exports
  check                                 open the snapshot read-only and verify its columns
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "init":
		err = withWritable(ctx, cfg, func(conn *sql.DB) error {
			return dataset.Init(ctx, conn)
		})
		if err == nil {
			fmt.Printf("schema applied to %s\n", cfg.Path)
		}
	case "import":
		if len(os.Args) != 4 {
			fmt.Fprintf(os.Stderr, usage, os.Args[0])
			os.Exit(1)
		}
		err = withWritable(ctx, cfg, func(conn *sql.DB) error {
			return importFiles(ctx, conn, os.Args[2], os.Args[3])
		})
	case "check":
		err = check(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func withWritable(ctx context.Context, cfg config.Config, fn func(*sql.DB) error) error {
	conn, err := db.OpenWritable(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()
	return fn(conn)
}

func importFiles(ctx context.Context, conn *sql.DB, stationsPath, measurementsPath string) error {
	if err := dataset.Init(ctx, conn); err != nil {
		return err
	}

	stations, err := os.Open(stationsPath)
	if err != nil {
		return err
	}
	defer stations.Close()
	n, err := dataset.ImportStations(ctx, conn, stations)
	if err != nil {
		return fmt.Errorf("%s: %w", stationsPath, err)
	}
	fmt.Printf("imported %d stations\n", n)

	measurements, err := os.Open(measurementsPath)
	if err != nil {
		return err
	}
	defer measurements.Close()
	n, err = dataset.ImportMeasurements(ctx, conn, measurements)
	if err != nil {
		return fmt.Errorf("%s: %w", measurementsPath, err)
	}
	fmt.Printf("imported %d measurements\n", n)
	return nil
}

func check(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	if err := db.CheckSchema(ctx, conn); err != nil {
		return err
	}
	var stations, measurements int
	if err := conn.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM station), (SELECT COUNT(*) FROM measurement)`).
		Scan(&stations, &measurements); err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	fmt.Printf("%s: schema ok, %d stations, %d measurements\n", cfg.Path, stations, measurements)
	return nil
}
