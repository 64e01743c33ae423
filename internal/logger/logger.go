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

// Package logger builds the agent's zap logger.
// logger 包构建 Agent 的 zap 日志记录器。
//
// Error and above go to stderr, everything else to stdout. When a log file is
// configured every entry is also written there through lumberjack rotation.
// Error 及以上级别输出到 stderr，其余输出到 stdout。配置日志文件时，所有日志还会通过
// lumberjack 轮转写入文件。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/seatunnel/ka-agent/internal/config"
)

// Options holds the writers used by New, replaceable in tests
// Options 保存 New 使用的输出目标，测试中可替换
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
}

// New builds a logger from the log configuration
// New 根据日志配置构建日志记录器
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return NewWithOptions(cfg, Options{Stdout: os.Stdout, Stderr: os.Stderr})
}

// NewWithOptions builds a logger writing to the given console writers
// NewWithOptions 构建写入指定控制台输出的日志记录器
func NewWithOptions(cfg config.LogConfig, opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && lvl >= level
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= level
	})

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(opts.Stderr)), highPriority),
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(opts.Stdout)), lowPriority),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// ParseLevel converts a configured level name to a zap level
// ParseLevel 将配置的级别名称转换为 zap 级别
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", name)
	}
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(encCfg), nil
	case "json":
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}
