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

// Package scanner computes liveness statistics over the shared register.
// scanner 包基于共享寄存器计算存活统计信息。
//
// Every function is a pure O(N) read. The timestamp and state arrays are
// scanned independently; a core changing state between two scans is tolerated
// and corrects itself on the next cycle.
// 所有函数都是纯 O(N) 读取。时间戳数组和状态数组独立扫描；两次扫描之间核心状态变化是可以容忍的，
// 会在下一个周期自行修正。
package scanner

import (
	"strconv"
	"strings"
	"time"

	"github.com/seatunnel/ka-agent/internal/shm"
)

// CoreView is the read-only surface the scanner needs from a register
// CoreView 是扫描器所需的寄存器只读接口
type CoreView interface {
	NumCores() int
	State(i int) shm.CoreState
	Timestamp(i int) uint64
}

// Snapshot is an agent-local observation taken at one sampling instant
// Snapshot 是在某一采样时刻的 Agent 本地观测结果
type Snapshot struct {
	MostRecentTimestamp uint64    `json:"most_recent_timestamp" yaml:"most_recent_timestamp"`
	DeadCores           []int     `json:"dead_cores" yaml:"dead_cores"`
	SampledAt           time.Time `json:"sampled_at" yaml:"sampled_at"`
}

// DeadCount returns the number of dead cores in the snapshot
func (s Snapshot) DeadCount() int {
	return len(s.DeadCores)
}

// MostRecentTimestamp returns the maximum timestamp over all slots, 0 when all are 0
// MostRecentTimestamp 返回所有槽位中的最大时间戳，全为 0 时返回 0
func MostRecentTimestamp(v CoreView) uint64 {
	var latest uint64
	for i := 0; i < v.NumCores(); i++ {
		if ts := v.Timestamp(i); ts > latest {
			latest = ts
		}
	}
	return latest
}

// DeadCores returns the indices in DEAD state in ascending order; never nil
// DeadCores 按升序返回处于 DEAD 状态的索引；从不返回 nil
func DeadCores(v CoreView) []int {
	dead := make([]int, 0)
	for i := 0; i < v.NumCores(); i++ {
		if v.State(i) == shm.StateDead {
			dead = append(dead, i)
		}
	}
	return dead
}

// Scan takes both measurements; the two arrays are not read atomically together
// Scan 同时进行两项测量；两个数组并非原子地一起读取
func Scan(v CoreView) Snapshot {
	return Snapshot{
		MostRecentTimestamp: MostRecentTimestamp(v),
		DeadCores:           DeadCores(v),
		SampledAt:           time.Now(),
	}
}

// Census counts slots per state
// Census 统计每种状态的槽位数
func Census(v CoreView) map[shm.CoreState]int {
	counts := make(map[shm.CoreState]int)
	for i := 0; i < v.NumCores(); i++ {
		counts[v.State(i)]++
	}
	return counts
}

// CoreRecord is one slot as seen at a sampling instant
// CoreRecord 是某一采样时刻看到的一个槽位
type CoreRecord struct {
	Index     int           `json:"index" yaml:"index"`
	State     shm.CoreState `json:"-" yaml:"-"`
	StateName string        `json:"state" yaml:"state"`
	Timestamp uint64        `json:"timestamp" yaml:"timestamp"`
}

// Cores lists the slots, skipping never-used ones (UNUSED with a zero timestamp) unless all is set
// Cores 列出槽位，除非 all 为 true，否则跳过从未使用的槽位（UNUSED 且时间戳为 0）
func Cores(v CoreView, all bool) []CoreRecord {
	records := make([]CoreRecord, 0, v.NumCores())
	for i := 0; i < v.NumCores(); i++ {
		state := v.State(i)
		ts := v.Timestamp(i)
		if !all && state == shm.StateUnused && ts == 0 {
			continue
		}
		records = append(records, CoreRecord{Index: i, State: state, StateName: state.String(), Timestamp: ts})
	}
	return records
}

// FormatIndices renders indices as "2, 5, 7"
// FormatIndices 将索引格式化为 "2, 5, 7"
func FormatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ", ")
}
