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

package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Register is a typed view over memory owned by the producer.
// Register 是生产者所拥有内存之上的类型化视图。
//
// All reads are atomic loads; the producer may write concurrently from
// another process. Register never writes to the memory.
// 所有读取都是原子加载；生产者可能在另一个进程中并发写入。Register 从不写入该内存。
type Register struct {
	layout     Layout
	sem        *uint64
	states     []int32
	timestamps []uint64
}

// NewRegister builds a view over mem, which must be 8-byte aligned and at least layout.Size() long
// NewRegister 在 mem 上构建视图，mem 必须 8 字节对齐且长度不小于 layout.Size()
func NewRegister(mem []byte, layout Layout) (*Register, error) {
	if layout.MaxCores <= 0 {
		return nil, fmt.Errorf("invalid layout: max cores %d", layout.MaxCores)
	}
	if len(mem) < layout.Size() {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrSegmentTooSmall, len(mem), layout.Size())
	}

	base := unsafe.Pointer(unsafe.SliceData(mem))
	if uintptr(base)%timestampSize != 0 {
		return nil, fmt.Errorf("register memory is not %d-byte aligned", timestampSize)
	}

	return &Register{
		layout:     layout,
		sem:        (*uint64)(base),
		states:     unsafe.Slice((*int32)(unsafe.Add(base, layout.StatesOffset())), layout.MaxCores),
		timestamps: unsafe.Slice((*uint64)(unsafe.Add(base, layout.TimestampsOffset())), layout.MaxCores),
	}, nil
}

// Layout returns the layout the view was built with
func (r *Register) Layout() Layout {
	return r.layout
}

// NumCores returns the number of core slots
// NumCores 返回核心槽位数量
func (r *Register) NumCores() int {
	return r.layout.MaxCores
}

// State returns the state of core slot i
// State 返回核心槽位 i 的状态
func (r *Register) State(i int) CoreState {
	return CoreState(atomic.LoadInt32(&r.states[i]))
}

// Timestamp returns the last-seen timestamp of core slot i
// Timestamp 返回核心槽位 i 的最后存活时间戳
func (r *Register) Timestamp(i int) uint64 {
	return atomic.LoadUint64(&r.timestamps[i])
}

// DeathSemaphore returns the first word of the embedded sem_t.
// DeathSemaphore 返回内嵌 sem_t 的第一个字。
// The word is shared with the producer; only the semaphore wait protocol may touch it.
// 该字与生产者共享；只有信号量等待协议可以操作它。
func (r *Register) DeathSemaphore() *uint64 {
	return r.sem
}
