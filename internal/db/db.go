package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"surfsup-server/internal/config"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// ErrDatasetMissing is returned by Open when the snapshot file does not exist.
var ErrDatasetMissing = errors.New("dataset file not found")

// Open returns a read-only handle onto the dataset snapshot. The handle is safe
// for concurrent use; callers acquire a *sql.Conn per operation.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.DSN == "" {
		if _, err := os.Stat(cfg.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrDatasetMissing, cfg.Path)
			}
			return nil, fmt.Errorf("stat %s: %w", cfg.Path, err)
		}
	}

	dsn := buildDSN(cfg, true)
	db, err := openHandle(cfg, dsn, logger)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// OpenWritable opens the snapshot for the offline dataset tooling, creating
// the parent directory when needed. The HTTP service never uses it.
func OpenWritable(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		dir := filepath.Dir(cfg.Path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(cfg.Driver, buildDSN(cfg, false))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func openHandle(cfg config.Config, dsn string, logger *slog.Logger) (*sql.DB, error) {
	if cfg.SQLLog {
		if cfg.Driver != "sqlite3" {
			return nil, fmt.Errorf("sql logging is only supported by the sqlite3 driver, got %q", cfg.Driver)
		}
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return db, nil
}

// buildDSN translates the configured path into a driver specific URI. The two
// drivers spell pragmas differently: mattn takes _name=value, modernc takes
// _pragma=name(value).
func buildDSN(cfg config.Config, readOnly bool) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	var params []string
	if readOnly {
		params = append(params, "mode=ro")
	} else {
		params = append(params, "mode=rwc")
	}
	switch cfg.Driver {
	case "sqlite":
		params = append(params, "_pragma=busy_timeout(5000)")
		if readOnly {
			params = append(params, "_pragma=query_only(1)")
		}
	default:
		params = append(params, "_busy_timeout=5000")
		if readOnly {
			params = append(params, "_query_only=true")
		}
	}

	path := cfg.Path
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&")
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}
