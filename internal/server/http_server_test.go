package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yarnitor/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth(t *testing.T) {
	metrics := common.NewPollerMetrics()
	router := NewHTTPServer(":0", metrics, zap.NewNop()).Router()

	rec, body := get(t, router, "/ws/v1/poller/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	metrics.RecordFailure("cycle-1", time.Second, errors.New("resource manager unavailable"))
	rec, body = get(t, router, "/ws/v1/poller/health")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "resource manager unavailable", body["error"])

	metrics.RecordSuccess("cycle-2", time.Second, &common.Snapshot{RefreshDatetime: "2026-10-14T08:00:00.000000Z"})
	rec, _ = get(t, router, "/ws/v1/poller/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	metrics := common.NewPollerMetrics()
	metrics.RecordSuccess("cycle-1", 250*time.Millisecond, &common.Snapshot{
		Current: map[string]*common.Application{
			"a": {State: common.ApplicationStateRunning},
			"b": {State: common.ApplicationStateNonResponsive},
			"c": {State: common.ApplicationStateRunning},
		},
		RefreshDatetime: "2026-10-14T08:00:00.000000Z",
	})

	rec, body := get(t, NewHTTPServer(":0", metrics, zap.NewNop()).Router(), "/ws/v1/poller/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(1), body["cycles_total"])
	assert.Equal(t, "cycle-1", body["last_cycle_id"])
	assert.Equal(t, "2026-10-14T08:00:00.000000Z", body["last_refresh"])
	assert.Equal(t, map[string]interface{}{"RUNNING": float64(2), "NON_RESPONSIVE": float64(1)}, body["application_states"])
}

func TestStartStop(t *testing.T) {
	s := NewHTTPServer("127.0.0.1:0", common.NewPollerMetrics(), zap.NewNop())
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.GetAddress() + "/ws/v1/poller/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
}
