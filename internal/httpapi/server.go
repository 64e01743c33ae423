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

// Package httpapi serves the agent's status, health and metrics endpoints.
// httpapi 包提供 Agent 的状态、健康检查和指标接口。
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seatunnel/ka-agent/internal/monitor"
)

// DefaultRecentEvents is how many events /status returns
// DefaultRecentEvents 是 /status 返回的事件数量
const DefaultRecentEvents = 20

// StateProvider exposes the watchdog loop state
// StateProvider 提供看门狗循环状态
type StateProvider interface {
	State() monitor.State
}

// ServerConfig holds the HTTP surface configuration
// ServerConfig 保存 HTTP 接口配置
type ServerConfig struct {
	Listen   string
	AgentID  string
	SHMName  string
	MaxCores int
	Debug    bool
}

// Response is the JSON envelope of every API reply
// Response 是所有 API 响应的 JSON 封装
type Response struct {
	ErrorMsg string      `json:"error_msg"`
	Data     interface{} `json:"data"`
}

// Status is the /status payload
// Status 是 /status 的响应内容
type Status struct {
	AgentID      string           `json:"agent_id"`
	SHMName      string           `json:"shm_name"`
	MaxCores     int              `json:"max_cores"`
	Healthy      bool             `json:"healthy"`
	Watchdog     monitor.State    `json:"watchdog"`
	RecentEvents []*monitor.Event `json:"recent_events"`
}

// Server is the gin based status server
// Server 是基于 gin 的状态服务器
type Server struct {
	config   ServerConfig
	state    StateProvider
	recorder *monitor.EventRecorder
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
}

// NewServer creates a status server. recorder and gatherer may be nil.
// NewServer 创建状态服务器，recorder 和 gatherer 可以为 nil。
func NewServer(config ServerConfig, state StateProvider, recorder *monitor.EventRecorder, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:   config,
		state:    state,
		recorder: recorder,
		gatherer: gatherer,
		logger:   logger,
	}
	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	if !s.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.loggerMiddleware())

	r.GET("/status", s.getStatus)
	r.GET("/healthz", s.getHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return r
}

// Handler returns the router, for tests and embedding
// Handler 返回路由器，用于测试和嵌入
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background
// Start 监听配置的地址并在后台提供服务
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("status server already started")
	}

	lis, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	s.listener = lis
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("Starting status server", zap.String("addr", lis.Addr().String()))

	srv := s.httpServer
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx expires
// Stop 关闭服务器，在 ctx 过期前等待进行中的请求完成
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping status server")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, empty when not started
// Addr 返回绑定的地址，未启动时为空
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) getStatus(c *gin.Context) {
	state := s.state.State()

	events := []*monitor.Event{}
	if s.recorder != nil {
		events = s.recorder.Recent(DefaultRecentEvents)
	}

	c.JSON(http.StatusOK, Response{Data: Status{
		AgentID:      s.config.AgentID,
		SHMName:      s.config.SHMName,
		MaxCores:     s.config.MaxCores,
		Healthy:      Healthy(state),
		Watchdog:     state,
		RecentEvents: events,
	}})
}

func (s *Server) getHealth(c *gin.Context) {
	state := s.state.State()
	if !Healthy(state) {
		c.JSON(http.StatusServiceUnavailable, Response{ErrorMsg: unhealthyReason(state)})
		return
	}
	c.JSON(http.StatusOK, Response{Data: "ok"})
}

// Healthy reports whether the loop is running with no dead cores
// Healthy 判断循环是否在运行且没有死亡核心
func Healthy(state monitor.State) bool {
	return state.Running && len(state.DeadCores) == 0
}

func unhealthyReason(state monitor.State) string {
	if !state.Running {
		if state.StopReason != monitor.StopNone {
			return "watchdog stopped: " + string(state.StopReason)
		}
		return "watchdog not running"
	}
	return fmt.Sprintf("%d dead cores", len(state.DeadCores))
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
