/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/seatunnel/ka-agent/internal/metrics"
	"github.com/seatunnel/ka-agent/internal/monitor"
)

type fixedState struct {
	state monitor.State
}

func (f *fixedState) State() monitor.State { return f.state }

func newTestServer(t *testing.T, state monitor.State) (*Server, *monitor.EventRecorder, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := monitor.NewEventRecorder()
	reg := prometheus.NewRegistry()
	srv := NewServer(ServerConfig{
		Listen:   "127.0.0.1:0",
		AgentID:  "agent-1",
		SHMName:  "/dpdk_keepalive_shm_name",
		MaxCores: 128,
		Debug:    true,
	}, &fixedState{state: state}, recorder, reg, zap.NewNop())
	return srv, recorder, reg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestStatus(t *testing.T) {
	srv, recorder, _ := newTestServer(t, monitor.State{
		Running:             true,
		LastSeenTimestamp:   77,
		ConsecutiveTimeouts: 2,
		DeadCores:           []int{},
	})
	recorder.Record(&monitor.Event{Type: monitor.EventTimeout, ConsecutiveTimeouts: 2})

	w := get(t, srv.Handler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ErrorMsg string `json:"error_msg"`
		Data     struct {
			AgentID      string           `json:"agent_id"`
			SHMName      string           `json:"shm_name"`
			Healthy      bool             `json:"healthy"`
			Watchdog     monitor.State    `json:"watchdog"`
			RecentEvents []*monitor.Event `json:"recent_events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.ErrorMsg)
	assert.Equal(t, "agent-1", body.Data.AgentID)
	assert.Equal(t, "/dpdk_keepalive_shm_name", body.Data.SHMName)
	assert.True(t, body.Data.Healthy)
	assert.Equal(t, uint64(77), body.Data.Watchdog.LastSeenTimestamp)
	assert.Equal(t, 2, body.Data.Watchdog.ConsecutiveTimeouts)
	require.Len(t, body.Data.RecentEvents, 1)
	assert.Equal(t, monitor.EventTimeout, body.Data.RecentEvents[0].Type)
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		state  monitor.State
		code   int
		reason string
	}{
		{name: "running", state: monitor.State{Running: true}, code: http.StatusOK},
		{name: "dead cores", state: monitor.State{Running: true, DeadCores: []int{3}}, code: http.StatusServiceUnavailable, reason: "1 dead cores"},
		{name: "stopped", state: monitor.State{StopReason: monitor.StopNoUpdates}, code: http.StatusServiceUnavailable, reason: "watchdog stopped: no_updates"},
		{name: "not started", state: monitor.State{}, code: http.StatusServiceUnavailable, reason: "watchdog not running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, tt.state)
			w := get(t, srv.Handler(), "/healthz")
			assert.Equal(t, tt.code, w.Code)

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.reason, body.ErrorMsg)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, reg := newTestServer(t, monitor.State{Running: true})
	collector := metrics.NewPrometheus(reg, "")
	collector.HandleEvent(&monitor.Event{Type: monitor.EventDeadCores, DeadCores: []int{1, 2}})

	w := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ka_agent_dead_cores 2")
	assert.Contains(t, w.Body.String(), `ka_agent_wait_outcomes_total{outcome="signaled"} 1`)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, _, _ := newTestServer(t, monitor.State{Running: true})
	assert.Empty(t, srv.Addr())

	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()), "second start is rejected")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx), "stop is idempotent")
	assert.Empty(t, srv.Addr())
}

func TestStartInvalidAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewServer(ServerConfig{Listen: "256.0.0.1:bad"}, &fixedState{}, nil, nil, nil)
	assert.Error(t, srv.Start(context.Background()))
}
