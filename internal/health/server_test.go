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

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/seatunnel/ka-agent/internal/monitor"
)

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsWatchdog(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := NewServer("127.0.0.1:0", zap.NewNop())
	require.NoError(t, srv.Start())
	assert.ErrorIs(t, srv.Start(), ErrServerAlreadyRunning)
	assert.True(t, srv.IsRunning())

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	client := healthpb.NewHealthClient(conn)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	srv.HandleEvent(&monitor.Event{Type: monitor.EventStarted})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, WatchdogService))

	srv.HandleEvent(&monitor.Event{Type: monitor.EventTimeout})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, WatchdogService))

	srv.HandleEvent(&monitor.Event{Type: monitor.EventDeadCores, DeadCores: []int{4}})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, WatchdogService))

	srv.HandleEvent(&monitor.Event{Type: monitor.EventEmptyReport})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	srv.HandleEvent(&monitor.Event{Type: monitor.EventStopped, Reason: monitor.StopNoUpdates})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	require.NoError(t, conn.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Stop(ctx)
	srv.Stop(ctx)
	assert.False(t, srv.IsRunning())
	assert.Empty(t, srv.Addr())
}

func TestStartInvalidAddress(t *testing.T) {
	srv := NewServer("not-an-address", nil)
	assert.Error(t, srv.Start())
	assert.False(t, srv.IsRunning())
}
