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

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/seatunnel/ka-agent/internal/config"
	"github.com/seatunnel/ka-agent/internal/health"
	"github.com/seatunnel/ka-agent/internal/httpapi"
	"github.com/seatunnel/ka-agent/internal/metrics"
	"github.com/seatunnel/ka-agent/internal/monitor"
	"github.com/seatunnel/ka-agent/internal/semwait"
	"github.com/seatunnel/ka-agent/internal/shm"
)

// shutdownTimeout bounds how long the network surfaces may take to stop
// shutdownTimeout 限制网络接口停止所需的时间
const shutdownTimeout = 5 * time.Second

// ErrAttach marks a failure to access the shared core state at startup
// ErrAttach 标记启动时无法访问共享核心状态
var ErrAttach = errors.New("unable to access shared core state")

// Agent wires the register, the watchdog loop and the optional surfaces
// Agent 连接寄存器、看门狗循环和可选的对外接口
type Agent struct {
	// config holds the agent configuration
	// config 保存 Agent 配置
	config *config.Config

	// logger is the root logger; components get named children
	// logger 是根日志记录器，组件使用其命名子记录器
	logger *zap.Logger

	// registry backs the /metrics endpoint
	// registry 为 /metrics 接口提供数据
	registry *prometheus.Registry

	// recorder keeps recent watchdog events for /status
	// recorder 为 /status 保留最近的看门狗事件
	recorder *monitor.EventRecorder

	// watchdog is set once the register is attached
	// watchdog 在寄存器附加后设置
	watchdog *monitor.Watchdog

	running bool
	mu      sync.Mutex
}

// NewAgent creates a new Agent instance
// NewAgent 创建一个新的 Agent 实例
func NewAgent(cfg *config.Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Agent{
		config:   cfg,
		logger:   logger,
		registry: registry,
		recorder: monitor.NewEventRecorder(),
	}
}

// Run attaches to the register and runs the watchdog until it stops.
// A non-nil error means the agent could not start.
// Run 附加到寄存器并运行看门狗直到其停止，返回非 nil 错误表示 Agent 无法启动。
func (a *Agent) Run(ctx context.Context) (monitor.StopReason, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return monitor.StopNone, errors.New("agent is already running")
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	cfg := a.config
	a.logger.Info("ka-agent starting",
		zap.String("agent_id", cfg.Agent.ID),
		zap.String("version", Version),
		zap.String("shm", cfg.SHM.Name),
		zap.String("dir", cfg.SHM.Dir),
		zap.Int("max_cores", cfg.SHM.MaxCores),
	)

	accessor, err := shm.Attach(cfg.SHM.Name, shm.Options{
		Dir:    cfg.SHM.Dir,
		Layout: cfg.Layout(),
		Logger: a.logger.Named("shm"),
	})
	if err != nil {
		a.logger.Error("Unable to access shared core state", zap.Error(err))
		return monitor.StopNone, fmt.Errorf("%w: %w", ErrAttach, err)
	}
	// Best effort; Detach already logs its own warning
	defer func() { _ = accessor.Detach() }()

	reg := accessor.Register()
	sem, err := semwait.NewFutexSemaphore(reg.DeathSemaphore())
	if err != nil {
		a.logger.Error("Unable to use death semaphore", zap.Error(err))
		return monitor.StopNone, fmt.Errorf("%w: %w", ErrAttach, err)
	}

	wd := monitor.NewWatchdog(reg, sem, monitor.Config{
		WaitWindow:  cfg.Watchdog.WaitWindow,
		MaxTimeouts: cfg.Watchdog.MaxTimeouts,
	}, a.logger.Named("watchdog"))
	a.mu.Lock()
	a.watchdog = wd
	a.mu.Unlock()

	wd.AddEventHandler(a.recorder.Record)
	collector := metrics.NewPrometheus(a.registry, metrics.DefaultNamespace)
	wd.AddEventHandler(collector.HandleEvent)

	stopSurfaces, err := a.startSurfaces(ctx, wd)
	if err != nil {
		return monitor.StopNone, err
	}
	defer stopSurfaces()

	reason := wd.Run(ctx)
	a.logger.Info("ka-agent stopped", zap.String("reason", string(reason)))
	return reason, nil
}

// startSurfaces starts the enabled HTTP and gRPC health servers and returns
// a function stopping them
// startSurfaces 启动已启用的 HTTP 和 gRPC 健康检查服务器，并返回停止它们的函数
func (a *Agent) startSurfaces(ctx context.Context, wd *monitor.Watchdog) (func(), error) {
	cfg := a.config
	var stops []func(context.Context)

	stopAll := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i](stopCtx)
		}
	}

	if cfg.Health.Enabled {
		hs := health.NewServer(cfg.Health.Listen, a.logger.Named("health"))
		if err := hs.Start(); err != nil {
			return nil, fmt.Errorf("failed to start health server: %w", err)
		}
		wd.AddEventHandler(hs.HandleEvent)
		stops = append(stops, hs.Stop)
	}

	if cfg.HTTP.Enabled {
		srv := httpapi.NewServer(httpapi.ServerConfig{
			Listen:   cfg.HTTP.Listen,
			AgentID:  cfg.Agent.ID,
			SHMName:  cfg.SHM.Name,
			MaxCores: cfg.SHM.MaxCores,
			Debug:    cfg.Log.Level == "debug",
		}, wd, a.recorder, a.registry, a.logger.Named("http"))
		if err := srv.Start(ctx); err != nil {
			stopAll()
			return nil, fmt.Errorf("failed to start status server: %w", err)
		}
		stops = append(stops, func(ctx context.Context) {
			if err := srv.Stop(ctx); err != nil {
				a.logger.Warn("Status server shutdown failed", zap.Error(err))
			}
		})
	}

	return stopAll, nil
}

// State returns the watchdog state, zero before the register is attached
// State 返回看门狗状态，寄存器附加前为零值
func (a *Agent) State() monitor.State {
	a.mu.Lock()
	wd := a.watchdog
	a.mu.Unlock()
	if wd == nil {
		return monitor.State{}
	}
	return wd.State()
}
