package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surfsup-server/internal/config"
	"surfsup-server/internal/dataset"
	"surfsup-server/internal/db"
)

func testConfig(t *testing.T, path string) config.Config {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return config.Config{
		AppEnv:          "dev",
		HTTPAddr:        addr,
		Driver:          "sqlite3",
		Path:            path,
		ShutdownTimeout: 2 * time.Second,
	}
}

func createSnapshot(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hawaii.sqlite")

	w, err := db.OpenWritable(ctx, config.Config{Driver: "sqlite3", Path: path})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, dataset.Init(ctx, w))
	require.NoError(t, dataset.InsertMeasurements(ctx, w, []dataset.MeasurementRow{
		{Station: "USC00519397", Date: "2017-08-23", Temperature: 81},
	}))
	return path
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	cfg := testConfig(t, createSnapshot(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	client := &http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + cfg.HTTPAddr + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_MissingDataset(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.sqlite"))

	err := Run(context.Background(), cfg)
	assert.ErrorIs(t, err, db.ErrDatasetMissing)
}

func TestRun_SchemaMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hawaii.sqlite")
	w, err := db.OpenWritable(ctx, config.Config{Driver: "sqlite3", Path: path})
	require.NoError(t, err)
	_, err = w.Exec(`CREATE TABLE measurement (id INTEGER PRIMARY KEY, station TEXT, date TEXT)`)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = Run(ctx, testConfig(t, path))
	var schemaErr *db.SchemaError
	require.True(t, errors.As(err, &schemaErr), "err = %v", err)
	assert.ElementsMatch(t, []string{"prcp", "tobs"}, schemaErr.Missing["measurement"])
	assert.Len(t, schemaErr.Missing["station"], 5)
}
