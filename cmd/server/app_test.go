package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/caro-api/internal/config"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/testdb"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	for key, value := range overrides {
		v.Set(key, value)
	}
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

func newTestApplication(t *testing.T) *application {
	t.Helper()
	db := testdb.New(t)
	log, _ := logger.NewTestLogger(t)

	app, err := newApplication(context.Background(), testConfig(t, nil), log, db.DB, db.Dialect)
	require.NoError(t, err)
	t.Cleanup(func() { app.close(context.Background()) })
	return app
}

func call(t *testing.T, h http.Handler, method, target, body string) (int, json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env.Data
}

func TestApplication_ReviewFeedsSubscribers(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t)

	status, _ := call(t, app.handler, http.MethodPost, "/api/review/initialize", `{"memberId":1,"cardId":100}`)
	require.Equal(t, http.StatusOK, status)

	status, data := call(t, app.handler, http.MethodGet, "/api/review/today?memberId=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[100]`, string(data))

	status, data = call(t, app.handler, http.MethodPost, "/api/review",
		`{"memberId":1,"cardId":100,"deckId":7,"quality":5,"reviewTimeMs":4000}`)
	require.Equal(t, http.StatusOK, status)
	var record struct {
		Interval    int     `json:"interval"`
		Repetitions int     `json:"repetitions"`
		EaseFactor  float64 `json:"easeFactor"`
	}
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, 1, record.Interval)
	assert.Equal(t, 1, record.Repetitions)
	assert.InDelta(t, 2.6, record.EaseFactor, 1e-9)

	// The card is due tomorrow now.
	_, data = call(t, app.handler, http.MethodGet, "/api/review/today?memberId=1", "")
	assert.JSONEq(t, `[]`, string(data))

	require.Eventually(t, func() bool {
		_, data := call(t, app.handler, http.MethodGet, "/api/gamification/stats/1", "")
		var stats struct {
			TotalExp int64 `json:"totalExp"`
		}
		return json.Unmarshal(data, &stats) == nil && stats.TotalExp == 15
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		status, data := call(t, app.handler, http.MethodGet, "/api/analytics/daily/1", "")
		var stats struct {
			TotalCards  int   `json:"totalCards"`
			TotalTimeMs int64 `json:"totalTimeMs"`
		}
		return status == http.StatusOK &&
			json.Unmarshal(data, &stats) == nil &&
			stats.TotalCards == 1 && stats.TotalTimeMs == 4000
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, data := call(t, app.handler, http.MethodGet, "/api/gamification/badges/1", "")
		return strings.Contains(string(data), "FIRST_REVIEW")
	}, 5*time.Second, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "caro_events_deliveries_total")
	assert.Contains(t, rec.Body.String(), "caro_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_sql_open_connections")
}

func TestApplication_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/health", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.Error(t, app.db.Ping(), "database should be closed after shutdown")
}

func TestOpenDatabase_UnsupportedDriver(t *testing.T) {
	t.Parallel()
	_, _, err := openDatabase(context.Background(), config.DatabaseConfig{Driver: "mysql", URL: "x"}, nil)
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}

func TestSetupTracing(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		tp, shutdown, err := setupTracing(config.TracingConfig{}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.NotNil(t, tp)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("enabled exports spans", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		tp, shutdown, err := setupTracing(config.TracingConfig{Enabled: true}, &buf)
		require.NoError(t, err)

		_, span := tp.Tracer("test").Start(context.Background(), "review.RecordReview")
		span.End()
		require.NoError(t, shutdown(context.Background()))

		assert.Contains(t, buf.String(), "review.RecordReview")
	})
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caro.db")

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append(args, "--database-driver", "sqlite", "--database-url", path, "--log-level", "error"))
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	out, err := run("migrate")
	require.NoError(t, err)
	assert.Regexp(t, `schema version: [1-9]\d*`, out)

	out, err = run("migrate", "version")
	require.NoError(t, err)
	assert.Regexp(t, `schema version: [1-9]\d*`, out)

	out, err = run("migrate", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 0")

	_, err = run("migrate", "sideways")
	assert.Error(t, err)
}
