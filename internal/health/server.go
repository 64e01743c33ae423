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

// Package health publishes the watchdog verdict over the standard gRPC health protocol.
// health 包通过标准 gRPC 健康检查协议发布看门狗的判定结果。
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/seatunnel/ka-agent/internal/monitor"
)

// WatchdogService is the service name whose status follows the watchdog.
// The empty (overall) service name follows it too.
// WatchdogService 是状态跟随看门狗的服务名，空（整体）服务名同样跟随。
const WatchdogService = "ka-agent.Watchdog"

// ErrServerAlreadyRunning is returned by a second Start
// ErrServerAlreadyRunning 在重复调用 Start 时返回
var ErrServerAlreadyRunning = errors.New("health server is already running")

// Server serves grpc.health.v1.Health
// Server 提供 grpc.health.v1.Health 服务
type Server struct {
	listen string
	logger *zap.Logger

	health     *grpchealth.Server
	grpcServer *grpc.Server
	listener   net.Listener
	running    bool
	mu         sync.Mutex
}

// NewServer creates a health server. Both services start as NOT_SERVING
// until the watchdog reports that it is running.
// NewServer 创建健康检查服务器，在看门狗报告运行之前两个服务均为 NOT_SERVING。
func NewServer(listen string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(WatchdogService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{listen: listen, logger: logger, health: hs}
}

// Start starts serving on the configured address
// Start 在配置的地址上开始服务
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(s.loggingUnaryInterceptor, s.recoveryUnaryInterceptor),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.listener = listener
	s.running = true
	s.logger.Info("Health server starting", zap.String("addr", listener.Addr().String()))

	srv := s.grpcServer
	go func() {
		if err := srv.Serve(listener); err != nil {
			s.logger.Error("Health server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the server, forcing it once ctx is done. Open Watch
// streams are told NOT_SERVING first.
// Stop 优雅地停止服务器，ctx 结束时强制停止。会先通知已打开的 Watch 流 NOT_SERVING。
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	srv := s.grpcServer
	s.running = false
	s.listener = nil
	s.mu.Unlock()

	s.logger.Info("Stopping health server")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
		<-done
	}
	s.logger.Info("Health server stopped")
}

// IsRunning returns whether the server is running
// IsRunning 返回服务器是否正在运行
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, empty when not running
// Addr 返回绑定的地址，未运行时为空
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HandleEvent updates the serving status. It matches monitor.EventHandler.
// HandleEvent 更新服务状态，签名与 monitor.EventHandler 一致。
func (s *Server) HandleEvent(event *monitor.Event) {
	switch event.Type {
	case monitor.EventStarted, monitor.EventEmptyReport:
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	case monitor.EventDeadCores, monitor.EventStopped:
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(WatchdogService, st)
}

func (s *Server) loggingUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	peerAddr := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		peerAddr = p.Addr.String()
	}

	resp, err := handler(ctx, req)

	s.logger.Debug("Health check",
		zap.String("method", info.FullMethod),
		zap.String("peer", peerAddr),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return resp, err
}

func (s *Server) recoveryUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Health handler panic",
				zap.String("method", info.FullMethod),
				zap.Any("panic", r),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()

	return handler(ctx, req)
}
