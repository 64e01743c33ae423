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

// Package config provides configuration management for the keepalive agent.
// config 包提供 keepalive Agent 的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables (KA_AGENT_*) / 环境变量（KA_AGENT_*）
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/seatunnel/ka-agent/internal/shm"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath    = "/etc/ka-agent/config.yaml"
	DefaultWaitWindow    = 2 * time.Second
	DefaultMaxTimeouts   = 4
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 3
	DefaultLogMaxAge     = 7 // days
	DefaultHTTPListen    = "127.0.0.1:9464"
	DefaultHealthListen  = "127.0.0.1:9465"

	// MinWaitWindow keeps the loop from spinning
	// MinWaitWindow 防止循环空转
	MinWaitWindow = 100 * time.Millisecond

	envPrefix     = "KA_AGENT"
	envConfigPath = "KA_AGENT_CONFIG_PATH"
)

// Config represents the agent configuration
// Config 表示 Agent 配置
type Config struct {
	// Agent configuration / Agent 配置
	Agent AgentConfig `mapstructure:"agent" yaml:"agent"`

	// Shared memory register / 共享内存寄存器
	SHM SHMConfig `mapstructure:"shm" yaml:"shm"`

	// Watchdog loop tuning / 看门狗循环参数
	Watchdog WatchdogConfig `mapstructure:"watchdog" yaml:"watchdog"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Status HTTP surface / 状态 HTTP 接口
	HTTP ListenerConfig `mapstructure:"http" yaml:"http"`

	// gRPC health surface / gRPC 健康检查接口
	Health ListenerConfig `mapstructure:"health" yaml:"health"`
}

// AgentConfig contains agent identity
// AgentConfig 包含 Agent 标识
type AgentConfig struct {
	// ID is the unique identifier for this agent (auto-generated if empty)
	// ID 是此 Agent 的唯一标识符（如果为空则自动生成）
	ID string `mapstructure:"id" yaml:"id"`
}

// SHMConfig describes the producer's shared memory object
// SHMConfig 描述生产者的共享内存对象
type SHMConfig struct {
	// Name is the shm_open name of the object
	// Name 是对象的 shm_open 名称
	Name string `mapstructure:"name" yaml:"name"`

	// Dir is where shared memory objects are mounted
	// Dir 是共享内存对象的挂载目录
	Dir string `mapstructure:"dir" yaml:"dir"`

	// MaxCores must equal the producer's compile-time core count
	// MaxCores 必须等于生产者编译时的核心数
	MaxCores int `mapstructure:"max_cores" yaml:"max_cores"`
}

// WatchdogConfig contains the liveness heuristic parameters
// WatchdogConfig 包含存活判定的启发式参数
type WatchdogConfig struct {
	// WaitWindow is the semaphore wait timeout of each cycle
	// WaitWindow 是每个周期的信号量等待超时
	WaitWindow time.Duration `mapstructure:"wait_window" yaml:"wait_window"`

	// MaxTimeouts is how many consecutive no-progress timeouts are tolerated
	// MaxTimeouts 是可容忍的连续无进展超时次数
	MaxTimeouts int `mapstructure:"max_timeouts" yaml:"max_timeouts"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the console encoding (console, json)
	// Format 是输出编码（console, json）
	Format string `mapstructure:"format" yaml:"format"`

	// File is the log file path, empty for stdout only
	// File 是日志文件路径，为空时只输出到标准输出
	File string `mapstructure:"file" yaml:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age" yaml:"max_age"`
}

// ListenerConfig enables an optional network surface
// ListenerConfig 启用可选的网络接口
type ListenerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := viper.New()

	// Set default values / 设置默认值
	setDefaults(v)

	// Set config file path / 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv(envConfigPath); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file / 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply
		// 配置文件不存在不是错误，使用默认值
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(bytes.NewReader(yamlData)); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.id", "")

	v.SetDefault("shm.name", shm.DefaultName)
	v.SetDefault("shm.dir", shm.DefaultDir)
	v.SetDefault("shm.max_cores", shm.DefaultMaxCores)

	v.SetDefault("watchdog.wait_window", DefaultWaitWindow)
	v.SetDefault("watchdog.max_timeouts", DefaultMaxTimeouts)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.listen", DefaultHTTPListen)
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.listen", DefaultHealthListen)
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	if strings.Trim(c.SHM.Name, "/") == "" || strings.Contains(strings.TrimLeft(c.SHM.Name, "/"), "/") {
		return fmt.Errorf("invalid shm.name: %q", c.SHM.Name)
	}
	if c.SHM.Dir == "" {
		return errors.New("shm.dir is required")
	}
	if _, err := shm.NewLayout(c.SHM.MaxCores); err != nil {
		return fmt.Errorf("invalid shm.max_cores: %w", err)
	}

	if c.Watchdog.WaitWindow < MinWaitWindow {
		return fmt.Errorf("watchdog.wait_window must be at least %v", MinWaitWindow)
	}
	if c.Watchdog.MaxTimeouts < 1 {
		return errors.New("watchdog.max_timeouts must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Log.Format)
	}

	if c.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			return fmt.Errorf("invalid http.listen: %w", err)
		}
	}
	if c.Health.Enabled {
		if _, _, err := net.SplitHostPort(c.Health.Listen); err != nil {
			return fmt.Errorf("invalid health.listen: %w", err)
		}
	}
	if c.HTTP.Enabled && c.Health.Enabled && c.HTTP.Listen == c.Health.Listen {
		return errors.New("http.listen and health.listen must differ")
	}

	return nil
}

// EnsureID fills in a random agent ID when none is configured
// EnsureID 在未配置时生成随机的 Agent ID
func (c *Config) EnsureID() string {
	if c.Agent.ID == "" {
		c.Agent.ID = uuid.NewString()
	}
	return c.Agent.ID
}

// Layout returns the register layout described by the configuration
// Layout 返回配置描述的寄存器布局
func (c *Config) Layout() shm.Layout {
	return shm.Layout{MaxCores: c.SHM.MaxCores}
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Agent.ID: %s, SHM: %s (%d cores), Watchdog: %v x %d, Log.Level: %s}",
		c.Agent.ID,
		c.SHM.Name,
		c.SHM.MaxCores,
		c.Watchdog.WaitWindow,
		c.Watchdog.MaxTimeouts,
		c.Log.Level,
	)
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}
