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

// Package shm provides read-only access to the keepalive shared-memory register.
// shm 包提供对 keepalive 共享内存寄存器的只读访问。
//
// The register is created and written by an external producer (the keepalive
// monitor). This package only attaches to the existing object, exposes a typed
// view of it and detaches again; it never creates, truncates or unlinks it.
// 寄存器由外部生产者（keepalive 监控进程）创建和写入。此包只附加到已存在的对象，
// 提供类型化视图并在结束时解除映射；从不创建、截断或删除该对象。
//
// Binary layout (64-bit Linux, glibc):
// 二进制布局（64 位 Linux，glibc）：
//
//	offset 0                 sem_t    core_died             (32 bytes)
//	offset 32                int32    core_state[N]
//	offset align8(32 + 4N)   uint64   core_last_seen_times[N]
package shm

import (
	"fmt"
	"strconv"
)

// Default register parameters, matching the producer's build defaults
// 默认寄存器参数，与生产者的编译默认值一致
const (
	DefaultName     = "/dpdk_keepalive_shm_name"
	DefaultDir      = "/dev/shm"
	DefaultMaxCores = 128

	// MaxSupportedCores bounds the layout to something a producer could plausibly compile in
	// MaxSupportedCores 限制布局的核心数上限
	MaxSupportedCores = 4096

	// SemaphoreSize is sizeof(sem_t) on 64-bit glibc
	// SemaphoreSize 是 64 位 glibc 上 sem_t 的大小
	SemaphoreSize = 32

	stateSize     = 4
	timestampSize = 8
)

// CoreState is the per-core state written by the producer
// CoreState 是生产者写入的每核心状态
type CoreState int32

const (
	StateUnused  CoreState = 0
	StateAlive   CoreState = 1
	StateDead    CoreState = 2
	StateGone    CoreState = 3
	StateMissing CoreState = 4
	StateDozing  CoreState = 5
	StateSleep   CoreState = 6
)

var stateNames = map[CoreState]string{
	StateUnused:  "UNUSED",
	StateAlive:   "ALIVE",
	StateDead:    "DEAD",
	StateGone:    "GONE",
	StateMissing: "MISSING",
	StateDozing:  "DOZING",
	StateSleep:   "SLEEP",
}

// String returns the state name, or STATE(n) for values the producer defines but we do not know
// String 返回状态名称，未知值返回 STATE(n)
func (s CoreState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "STATE(" + strconv.Itoa(int(s)) + ")"
}

// Layout describes the byte layout of the register for a given core count
// Layout 描述给定核心数下寄存器的字节布局
type Layout struct {
	MaxCores int
}

// NewLayout creates a Layout and validates the core count
// NewLayout 创建 Layout 并校验核心数
func NewLayout(maxCores int) (Layout, error) {
	if maxCores <= 0 || maxCores > MaxSupportedCores {
		return Layout{}, fmt.Errorf("max cores must be in [1, %d], got %d", MaxSupportedCores, maxCores)
	}
	return Layout{MaxCores: maxCores}, nil
}

// DefaultLayout returns the layout for DefaultMaxCores
// DefaultLayout 返回 DefaultMaxCores 对应的布局
func DefaultLayout() Layout {
	return Layout{MaxCores: DefaultMaxCores}
}

// StatesOffset is the byte offset of core_state[0]
func (l Layout) StatesOffset() int {
	return SemaphoreSize
}

// TimestampsOffset is the byte offset of core_last_seen_times[0]
func (l Layout) TimestampsOffset() int {
	return alignUp(l.StatesOffset()+stateSize*l.MaxCores, timestampSize)
}

// Size is the exact size of the structure in bytes
// Size 是结构体的精确字节大小
func (l Layout) Size() int {
	return l.TimestampsOffset() + timestampSize*l.MaxCores
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
