package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// requiredColumns maps each table the service reads to the columns its
// queries reference.
var requiredColumns = map[string][]string{
	"station":     {"station", "name", "latitude", "longitude", "elevation"},
	"measurement": {"station", "date", "prcp", "tobs"},
}

// SchemaError lists what a snapshot is missing.
type SchemaError struct {
	Missing map[string][]string
}

func (e *SchemaError) Error() string {
	tables := make([]string, 0, len(e.Missing))
	for t := range e.Missing {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, fmt.Sprintf("%s(%s)", t, strings.Join(e.Missing[t], ", ")))
	}
	return "dataset schema mismatch, missing: " + strings.Join(parts, "; ")
}

// CheckSchema verifies that the station and measurement tables expose every
// column the queries need. A missing table reports all of its columns.
func CheckSchema(ctx context.Context, db *sql.DB) error {
	missing := make(map[string][]string)
	for table, want := range requiredColumns {
		have, err := tableColumns(ctx, db, table)
		if err != nil {
			return err
		}
		for _, col := range want {
			if !have[col] {
				missing[table] = append(missing[table], col)
			}
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	slog.Debug("dataset schema ok", "tables", len(requiredColumns))
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	// PRAGMA arguments cannot be bound; table names come from requiredColumns only.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close table_info rows", "table", table, "error", err)
		}
	}()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		out[strings.ToLower(name)] = true
	}
	return out, rows.Err()
}
