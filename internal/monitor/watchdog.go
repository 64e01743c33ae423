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

// Package monitor runs the keepalive watchdog loop.
// monitor 包运行 keepalive 看门狗循环。
//
// This package provides:
// 此包提供：
// - Dead core reporting on semaphore signals / 信号量通知时的死亡核心上报
// - Producer stall detection over consecutive timeouts / 基于连续超时的生产者停滞检测
// - Watchdog event generation / 看门狗事件生成
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seatunnel/ka-agent/internal/scanner"
	"github.com/seatunnel/ka-agent/internal/semwait"
)

// DefaultWaitWindow is the semaphore wait timeout of one cycle
// DefaultWaitWindow 是一个周期的信号量等待超时
const DefaultWaitWindow = 2 * time.Second

// DefaultMaxTimeouts is the number of consecutive no-progress timeouts tolerated.
// The loop stops on the first timeout that exceeds it.
// DefaultMaxTimeouts 是可容忍的连续无进展超时次数，超过后的第一次超时将停止循环。
const DefaultMaxTimeouts = 4

// Console messages
// 控制台消息
const (
	MsgEmptyReport = "Empty dead core report"
	MsgNoUpdates   = "No updates. Exiting.."
)

// StopReason tells why the loop stopped
// StopReason 说明循环停止的原因
type StopReason string

const (
	StopNone      StopReason = ""
	StopNoUpdates StopReason = "no_updates"
	StopCancelled StopReason = "cancelled"
)

// Config holds the watchdog tuning
// Config 保存看门狗参数
type Config struct {
	WaitWindow  time.Duration
	MaxTimeouts int
}

// DefaultConfig returns the stock 2s / 4 timeouts configuration
// DefaultConfig 返回默认的 2 秒 / 4 次超时配置
func DefaultConfig() Config {
	return Config{WaitWindow: DefaultWaitWindow, MaxTimeouts: DefaultMaxTimeouts}
}

// State is a point-in-time copy of the loop state
// State 是循环状态的时间点副本
type State struct {
	Running             bool       `json:"running" yaml:"running"`
	StopReason          StopReason `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	LastSeenTimestamp   uint64     `json:"last_seen_timestamp" yaml:"last_seen_timestamp"`
	ConsecutiveTimeouts int        `json:"consecutive_timeouts" yaml:"consecutive_timeouts"`
	DeadCores           []int      `json:"dead_cores" yaml:"dead_cores"`
	Cycles              uint64     `json:"cycles" yaml:"cycles"`
	StartedAt           time.Time  `json:"started_at" yaml:"started_at"`
	UpdatedAt           time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Watchdog waits on the death semaphore and judges producer liveness
// Watchdog 等待死亡信号量并判断生产者存活状态
type Watchdog struct {
	view   scanner.CoreView
	sem    semwait.Semaphore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	handlers []EventHandler
	state    State
	mu       sync.RWMutex
}

// NewWatchdog creates a watchdog over a register view and its death semaphore.
// Zero config fields fall back to the defaults.
// NewWatchdog 基于寄存器视图及其死亡信号量创建看门狗，配置零值使用默认值。
func NewWatchdog(view scanner.CoreView, sem semwait.Semaphore, cfg Config, logger *zap.Logger) *Watchdog {
	if cfg.WaitWindow <= 0 {
		cfg.WaitWindow = DefaultWaitWindow
	}
	if cfg.MaxTimeouts <= 0 {
		cfg.MaxTimeouts = DefaultMaxTimeouts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		view:   view,
		sem:    sem,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		state:  State{DeadCores: []int{}},
	}
}

// Config returns the effective configuration
// Config 返回生效的配置
func (w *Watchdog) Config() Config {
	return w.cfg
}

// AddEventHandler registers a handler called synchronously for every event.
// Handlers must be added before Run.
// AddEventHandler 注册一个对每个事件同步调用的处理器，必须在 Run 之前添加。
func (w *Watchdog) AddEventHandler(handler EventHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// State returns a copy of the current loop state
// State 返回当前循环状态的副本
func (w *Watchdog) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.state
	s.DeadCores = append([]int{}, w.state.DeadCores...)
	return s
}

// Run loops until the producer stalls or ctx is cancelled. Cancellation is
// observed between cycles, so it takes effect within one wait window.
// Run 循环运行直到生产者停滞或 ctx 被取消。取消在周期之间检查，因此最多一个等待窗口内生效。
func (w *Watchdog) Run(ctx context.Context) StopReason {
	w.mu.Lock()
	w.state.Running = true
	w.state.StopReason = StopNone
	w.state.StartedAt = w.now()
	w.state.UpdatedAt = w.state.StartedAt
	w.mu.Unlock()

	w.logger.Info("Watchdog started",
		zap.Duration("wait_window", w.cfg.WaitWindow),
		zap.Int("max_timeouts", w.cfg.MaxTimeouts),
		zap.Int("cores", w.view.NumCores()),
	)
	w.emit(&Event{Type: EventStarted})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watchdog cancelled", zap.Error(ctx.Err()))
			w.stop(StopCancelled)
			return StopCancelled
		default:
		}

		if reason := w.Step(); reason != StopNone {
			return reason
		}
	}
}

// Step runs a single wait cycle and returns StopNoUpdates when the producer
// is judged stalled
// Step 运行一个等待周期，当判定生产者停滞时返回 StopNoUpdates
func (w *Watchdog) Step() StopReason {
	// Sampled before the wait so that progress is judged against the
	// producer's state at the start of the window
	mostRecent := scanner.MostRecentTimestamp(w.view)

	res := semwait.WaitForSignal(w.sem, w.now().Add(w.cfg.WaitWindow))

	w.mu.Lock()
	w.state.Cycles++
	w.state.UpdatedAt = w.now()
	w.mu.Unlock()

	switch res.Outcome {
	case semwait.Signaled:
		w.handleSignal(mostRecent)
	case semwait.TimedOut:
		return w.handleTimeout(mostRecent)
	default:
		w.logger.Error("Death notification wait failed", zap.Error(res.Err))
		w.emit(&Event{Type: EventWaitError, MostRecentTimestamp: mostRecent, Err: res.Err})
	}
	return StopNone
}

func (w *Watchdog) handleSignal(mostRecent uint64) {
	dead := scanner.DeadCores(w.view)

	w.mu.Lock()
	w.state.ConsecutiveTimeouts = 0
	w.state.DeadCores = append([]int{}, dead...)
	w.mu.Unlock()

	if len(dead) == 0 {
		w.logger.Warn(MsgEmptyReport)
		w.emit(&Event{Type: EventEmptyReport, MostRecentTimestamp: mostRecent, DeadCores: dead})
		return
	}

	w.logger.Error(fmt.Sprintf("%d dead cores: %s", len(dead), scanner.FormatIndices(dead)),
		zap.Int("count", len(dead)),
		zap.Ints("cores", dead),
	)
	w.emit(&Event{Type: EventDeadCores, MostRecentTimestamp: mostRecent, DeadCores: dead})
}

func (w *Watchdog) handleTimeout(mostRecent uint64) StopReason {
	w.mu.Lock()
	progressed := mostRecent != w.state.LastSeenTimestamp
	if progressed {
		w.state.ConsecutiveTimeouts = 0
	} else {
		w.state.ConsecutiveTimeouts++
	}
	w.state.LastSeenTimestamp = mostRecent
	count := w.state.ConsecutiveTimeouts
	w.mu.Unlock()

	w.logger.Debug("No death notification",
		zap.Uint64("most_recent", mostRecent),
		zap.Bool("progressed", progressed),
		zap.Int("consecutive_timeouts", count),
	)
	w.emit(&Event{
		Type:                EventTimeout,
		MostRecentTimestamp: mostRecent,
		Progressed:          progressed,
	})

	if count > w.cfg.MaxTimeouts {
		w.logger.Warn(MsgNoUpdates, zap.Int("consecutive_timeouts", count))
		w.stop(StopNoUpdates)
		return StopNoUpdates
	}
	return StopNone
}

func (w *Watchdog) stop(reason StopReason) {
	w.mu.Lock()
	w.state.Running = false
	w.state.StopReason = reason
	w.state.UpdatedAt = w.now()
	w.mu.Unlock()

	w.emit(&Event{Type: EventStopped, Reason: reason})
}

// emit stamps and dispatches an event to all handlers
// emit 为事件打上时间戳并分发给所有处理器
func (w *Watchdog) emit(event *Event) {
	event.Timestamp = w.now()

	if event.Err != nil {
		event.Error = event.Err.Error()
	}

	w.mu.RLock()
	handlers := w.handlers
	event.ConsecutiveTimeouts = w.state.ConsecutiveTimeouts
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
