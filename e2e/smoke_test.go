//go:build e2e

package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"surfsup-server/internal/dataset"
)

const repoRootRel = ".."          // relative to ./e2e
const mainPkgRel = "./cmd/server" // service entry point

func TestSmoke_Healthz(t *testing.T) {
	repoRoot := repoRootPath(t)

	// SQLite "service" container creates the snapshot file in a host temp dir.
	sqlitePath := startSQLite(t)
	seedSnapshot(t, sqlitePath)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"DB_DRIVER=sqlite3",
		"SQLITE_PATH="+sqlitePath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	require.NoError(t, cmd.Start(), "start server")
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + addr

	waitForOK(t, client, base+"/healthz", 5*time.Second)

	var health map[string]string
	getJSON(t, client, base+"/healthz", http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])

	var ready map[string]string
	getJSON(t, client, base+"/readyz", http.StatusOK, &ready)
	assert.Equal(t, "ready", ready["status"])

	var stations []map[string]any
	getJSON(t, client, base+"/api/v1.0/stations", http.StatusOK, &stations)
	require.Len(t, stations, 2)
	assert.Equal(t, "USC00519397", stations[0]["station"])

	var tobs []map[string]any
	getJSON(t, client, base+"/api/v1.0/tobs", http.StatusOK, &tobs)
	require.Len(t, tobs, 2)
	assert.Equal(t, "2017-08-22", tobs[0]["date"])

	var summary []map[string]float64
	getJSON(t, client, base+"/api/v1.0/2017-08-22/2017-08-23", http.StatusOK, &summary)
	require.Len(t, summary, 1)
	assert.Equal(t, 74.0, summary[0]["min"])
	assert.Equal(t, 81.0, summary[0]["max"])

	stopServer(t, cmd)
}

func startSQLite(t *testing.T) string {
	t.Helper()

	hostDir := t.TempDir()
	dbPath := filepath.Join(hostDir, "hawaii.sqlite")

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:      "nouchka/sqlite3:latest",
		WorkingDir: "/data",
		// Create the DB file, hand it to the host user and keep container alive.
		Entrypoint: []string{"sh", "-c"},
		Cmd: []string{
			"sqlite3 /data/hawaii.sqlite \"PRAGMA user_version=1;\" && " +
				"chmod 0777 /data && chmod 0666 /data/hawaii.sqlite && " +
				"echo 'sqlite ready' && " +
				"tail -f /dev/null",
		},

		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, hostDir+":/data")
		},
		WaitingFor: wait.ForLog("sqlite ready").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start sqlite container")

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "sqlite db file not created")

	return dbPath
}

func seedSnapshot(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	prcp := 0.08
	require.NoError(t, dataset.Init(ctx, db))
	require.NoError(t, dataset.InsertStations(ctx, db, []dataset.StationRow{
		{Station: "USC00519397", Name: "WAIKIKI 717.2, HI US", Latitude: 21.2716, Longitude: -157.8168, Elevation: 3},
		{Station: "USC00513117", Name: "KANEOHE 838.1, HI US", Latitude: 21.4234, Longitude: -157.8015, Elevation: 14.6},
	}))
	require.NoError(t, dataset.InsertMeasurements(ctx, db, []dataset.MeasurementRow{
		{Station: "USC00519397", Date: "2017-08-22", Precipitation: &prcp, Temperature: 74},
		{Station: "USC00519397", Date: "2017-08-23", Precipitation: nil, Temperature: 81},
		{Station: "USC00513117", Date: "2017-08-23", Precipitation: &prcp, Temperature: 76},
	}))
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err, "getwd")

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	_, err = os.Stat(filepath.Join(repo, "go.mod"))
	require.NoErrorf(t, err, "repo root %q does not contain go.mod", repo)

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "surfsup-server")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	require.NoErrorf(t, err, "go build failed:\n%s", string(b))

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen :0")
	defer ln.Close()

	return ln.Addr().String()
}

func getJSON(t *testing.T, client *http.Client, url string, wantStatus int, out any) {
	t.Helper()

	resp, err := client.Get(url)
	require.NoErrorf(t, err, "GET %s", url)
	defer resp.Body.Close()

	require.Equalf(t, wantStatus, resp.StatusCode, "GET %s", url)
	require.NoErrorf(t, json.NewDecoder(resp.Body).Decode(out), "decode %s", url)
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
