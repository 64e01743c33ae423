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

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatunnel/ka-agent/internal/monitor"
)

func TestHandleEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	p.HandleEvent(&monitor.Event{Type: monitor.EventStarted})
	p.HandleEvent(&monitor.Event{Type: monitor.EventTimeout, MostRecentTimestamp: 42, ConsecutiveTimeouts: 1})
	p.HandleEvent(&monitor.Event{Type: monitor.EventTimeout, MostRecentTimestamp: 42, ConsecutiveTimeouts: 2})
	p.HandleEvent(&monitor.Event{Type: monitor.EventDeadCores, MostRecentTimestamp: 43, DeadCores: []int{2, 5, 7}})
	p.HandleEvent(&monitor.Event{Type: monitor.EventEmptyReport, MostRecentTimestamp: 44})
	p.HandleEvent(&monitor.Event{Type: monitor.EventWaitError, MostRecentTimestamp: 44})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.running))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.waitOutcomes.WithLabelValues("timed_out")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.waitOutcomes.WithLabelValues("signaled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.waitOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.deadCoreReports))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.emptyReports))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.deadCores), "empty report clears the dead core gauge")
	assert.Equal(t, 44.0, testutil.ToFloat64(p.mostRecentTimestamp))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.consecutiveTimeouts))

	p.HandleEvent(&monitor.Event{Type: monitor.EventStopped, Reason: monitor.StopNoUpdates, ConsecutiveTimeouts: 5})
	assert.Equal(t, 0.0, testutil.ToFloat64(p.running))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.consecutiveTimeouts))
	assert.Equal(t, 44.0, testutil.ToFloat64(p.mostRecentTimestamp))
}

func TestDeadCoresGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "custom")
	p.HandleEvent(&monitor.Event{Type: monitor.EventDeadCores, DeadCores: []int{1, 3}})

	expected := `
# HELP custom_dead_cores Number of cores in the DEAD state at the last death notification.
# TYPE custom_dead_cores gauge
custom_dead_cores 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "custom_dead_cores"))
}

func TestLazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	p.HandleEvent(&monitor.Event{Type: monitor.EventStarted})
	p.HandleEvent(&monitor.Event{Type: monitor.EventStarted})
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)
}
