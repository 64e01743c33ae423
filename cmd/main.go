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

// Package main is the entry point for the ka-agent keepalive watchdog.
// main 包是 ka-agent keepalive 看门狗的入口点。
//
// ka-agent runs next to a packet processing application that publishes
// per-core liveness in a shared memory register:
// ka-agent 与在共享内存寄存器中发布各核心存活状态的报文处理应用一起运行：
// - Reports dead cores when the producer posts the death semaphore / 生产者发布死亡信号量时上报死亡核心
// - Exits when the producer stops updating core timestamps / 生产者停止更新核心时间戳时退出
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/seatunnel/ka-agent/internal/config"
	"github.com/seatunnel/ka-agent/internal/logger"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// flagKeys maps command line flags to configuration keys
// flagKeys 将命令行标志映射到配置键
var flagKeys = map[string]string{
	"shm-name":     "shm.name",
	"shm-dir":      "shm.dir",
	"max-cores":    "shm.max_cores",
	"wait-window":  "watchdog.wait_window",
	"max-timeouts": "watchdog.max_timeouts",
	"log-level":    "log.level",
}

// newRootCmd builds the command tree
// newRootCmd 构建命令树
func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "ka-agent",
		Short: "ka-agent - keepalive watchdog for shared memory core liveness",
		Long: `ka-agent attaches to the keepalive register published by a packet
processing application and watches its cores.
ka-agent 附加到报文处理应用发布的 keepalive 寄存器并监视其核心。

- Dead cores are reported whenever the producer posts the death semaphore
  生产者发布死亡信号量时上报死亡核心
- The agent exits once the producer stops updating core timestamps
  生产者停止更新核心时间戳后 Agent 退出`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")
	flags.String("shm-name", "", "shared memory object name")
	flags.String("shm-dir", "", "directory holding shared memory objects")
	flags.Int("max-cores", 0, "producer core count (RTE_MAX_LCORE)")
	flags.Duration("wait-window", 0, "death semaphore wait timeout per cycle")
	flags.Int("max-timeouts", 0, "consecutive no-progress timeouts tolerated before exiting")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return loadConfig(configFile, cmd.Flags())
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the watchdog (default) / 运行看门狗（默认）",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, load)
		},
	}
	rootCmd.RunE = runCmd.RunE

	var output string
	var all bool
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the register contents once / 打印一次寄存器内容",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			report, err := inspectRegister(cfg, all)
			if err != nil {
				return err
			}
			switch output {
			case "yaml":
				return report.writeYAML(cmd.OutOrStdout())
			case "text":
				return report.writeText(cmd.OutOrStdout())
			default:
				return fmt.Errorf("unknown output format: %s", output)
			}
		},
	}
	inspectCmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, yaml)")
	inspectCmd.Flags().BoolVar(&all, "all", false, "include never used core slots")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information / 打印版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ka-agent\n")
			fmt.Fprintf(out, "  Version:    %s\n", Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	rootCmd.AddCommand(runCmd, inspectCmd, versionCmd)
	return rootCmd
}

// loadConfig loads and validates the configuration, with explicitly set flags taking priority
// loadConfig 加载并验证配置，显式设置的标志优先
func loadConfig(configFile string, flags *pflag.FlagSet) (*config.Config, error) {
	cmdArgs := make(map[string]interface{})
	for flag, key := range flagKeys {
		f := flags.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		var value interface{}
		var err error
		switch f.Value.Type() {
		case "int":
			value, err = flags.GetInt(flag)
		case "duration":
			value, err = flags.GetDuration(flag)
		default:
			value = f.Value.String()
		}
		if err != nil {
			return nil, err
		}
		cmdArgs[key] = value
	}

	cfg, err := config.LoadWithPriority(configFile, cmdArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.EnsureID()
	return cfg, nil
}

// runAgent is the main entry point for the watchdog
// runAgent 是看门狗的主入口点
func runAgent(cmd *cobra.Command, load func(*cobra.Command) (*config.Config, error)) error {
	cfg, err := load(cmd)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// SIGINT/SIGTERM stop the loop between cycles
	// SIGINT/SIGTERM 在周期之间停止循环
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := NewAgent(cfg, log)
	reason, err := agent.Run(ctx)
	if err != nil {
		return err
	}
	log.Debug("Exiting", zap.String("reason", string(reason)))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
