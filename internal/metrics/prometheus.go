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

// Package metrics exports watchdog activity as Prometheus metrics.
// metrics 包将看门狗活动导出为 Prometheus 指标。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seatunnel/ka-agent/internal/monitor"
	"github.com/seatunnel/ka-agent/internal/semwait"
)

// DefaultNamespace prefixes every metric name
// DefaultNamespace 是所有指标名称的前缀
const DefaultNamespace = "ka_agent"

// PrometheusCollector turns watchdog events into Prometheus metrics.
// Metrics are registered lazily on the first event.
// PrometheusCollector 将看门狗事件转换为 Prometheus 指标，指标在第一个事件时延迟注册。
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	deadCores           prometheus.Gauge
	deadCoreReports     prometheus.Counter
	emptyReports        prometheus.Counter
	mostRecentTimestamp prometheus.Gauge
	consecutiveTimeouts prometheus.Gauge
	waitOutcomes        *prometheus.CounterVec
	running             prometheus.Gauge
}

// NewPrometheus creates a collector. A nil registerer means
// prometheus.DefaultRegisterer, an empty namespace means DefaultNamespace.
// NewPrometheus 创建采集器。registerer 为 nil 时使用默认注册器，namespace 为空时使用 DefaultNamespace。
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.deadCores = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "dead_cores",
			Help:      "Number of cores in the DEAD state at the last death notification.",
		})
		p.deadCoreReports = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "dead_core_reports_total",
			Help:      "Total death notifications that reported at least one dead core.",
		})
		p.emptyReports = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "empty_reports_total",
			Help:      "Total death notifications with no core in the DEAD state.",
		})
		p.mostRecentTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "most_recent_timestamp",
			Help:      "Largest core last-seen timestamp sampled by the watchdog (producer clock units).",
		})
		p.consecutiveTimeouts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "consecutive_timeouts",
			Help:      "Current number of consecutive wait timeouts without producer progress.",
		})
		p.waitOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "wait_outcomes_total",
			Help:      "Total death semaphore waits by outcome (signaled, timed_out, failed).",
		}, []string{"outcome"})
		p.running = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "running",
			Help:      "Watchdog loop state (1=running,0=stopped).",
		})

		p.reg.MustRegister(p.deadCores)
		p.reg.MustRegister(p.deadCoreReports)
		p.reg.MustRegister(p.emptyReports)
		p.reg.MustRegister(p.mostRecentTimestamp)
		p.reg.MustRegister(p.consecutiveTimeouts)
		p.reg.MustRegister(p.waitOutcomes)
		p.reg.MustRegister(p.running)
	})
}

// HandleEvent records one watchdog event. It matches monitor.EventHandler.
// HandleEvent 记录一个看门狗事件，签名与 monitor.EventHandler 一致。
func (p *PrometheusCollector) HandleEvent(event *monitor.Event) {
	p.ensureRegistered()

	switch event.Type {
	case monitor.EventStarted:
		p.running.Set(1)
	case monitor.EventDeadCores:
		p.waitOutcomes.WithLabelValues(semwait.Signaled.String()).Inc()
		p.deadCoreReports.Inc()
		p.deadCores.Set(float64(len(event.DeadCores)))
	case monitor.EventEmptyReport:
		p.waitOutcomes.WithLabelValues(semwait.Signaled.String()).Inc()
		p.emptyReports.Inc()
		p.deadCores.Set(0)
	case monitor.EventTimeout:
		p.waitOutcomes.WithLabelValues(semwait.TimedOut.String()).Inc()
	case monitor.EventWaitError:
		p.waitOutcomes.WithLabelValues(semwait.Failed.String()).Inc()
	case monitor.EventStopped:
		p.running.Set(0)
	}

	if event.Type != monitor.EventStarted && event.Type != monitor.EventStopped {
		p.mostRecentTimestamp.Set(float64(event.MostRecentTimestamp))
	}
	p.consecutiveTimeouts.Set(float64(event.ConsecutiveTimeouts))
}
