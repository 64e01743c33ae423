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

//go:build linux && (amd64 || arm64 || riscv64 || ppc64le || loong64 || mips64le)

package semwait

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// glibc 64-bit sem_t: the first 8 bytes hold the count in the low 32 bits and
// the number of blocked waiters in the high 32 bits. sem_post only issues a
// futex wake when the waiter count is non-zero.
// glibc 64 位 sem_t：前 8 字节低 32 位为计数，高 32 位为阻塞等待者数量。仅当等待者数量非零时
// sem_post 才会执行 futex 唤醒。
const (
	semValueMask     = 0xffffffff
	semNwaitersShift = 32
	semOneWaiter     = uint64(1) << semNwaitersShift

	futexWaitBitset     = 9
	futexClockRealtime  = 256
	futexBitsetMatchAny = 0xffffffff
)

// FutexSemaphore waits on a process-shared glibc sem_t without cgo.
// FutexSemaphore 无需 cgo 即可等待进程共享的 glibc sem_t。
type FutexSemaphore struct {
	data *uint64
}

var _ Semaphore = (*FutexSemaphore)(nil)

// NewFutexSemaphore wraps the first word of a sem_t living in shared memory
// NewFutexSemaphore 包装位于共享内存中的 sem_t 的第一个字
func NewFutexSemaphore(word *uint64) (*FutexSemaphore, error) {
	if word == nil {
		return nil, errors.New("semaphore word is nil")
	}
	if uintptr(unsafe.Pointer(word))%8 != 0 {
		return nil, fmt.Errorf("semaphore word at %p is not 8-byte aligned", word)
	}
	return &FutexSemaphore{data: word}, nil
}

// Value returns the current count
// Value 返回当前计数
func (s *FutexSemaphore) Value() uint32 {
	return uint32(atomic.LoadUint64(s.data) & semValueMask)
}

// TimedWait implements Semaphore with sem_timedwait semantics (CLOCK_REALTIME absolute deadline)
// TimedWait 以 sem_timedwait 语义实现 Semaphore（CLOCK_REALTIME 绝对截止时间）
func (s *FutexSemaphore) TimedWait(deadline time.Time) error {
	if s.tryDecrement() {
		return nil
	}

	// Register as a waiter so that the producer's sem_post wakes us
	// 注册为等待者，使生产者的 sem_post 能唤醒我们
	d := atomic.AddUint64(s.data, semOneWaiter)
	for {
		if d&semValueMask == 0 {
			err := s.futexWait(deadline)
			switch {
			case err == nil, errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
				// woken, raced with a post, or interrupted: re-check the count
			case errors.Is(err, unix.ETIMEDOUT):
				s.unregister()
				return ErrTimedOut
			default:
				s.unregister()
				return err
			}
			d = atomic.LoadUint64(s.data)
			continue
		}

		// Take one token and drop our waiter registration in a single step
		// 一步完成获取一个计数并注销等待者
		if atomic.CompareAndSwapUint64(s.data, d, d-1-semOneWaiter) {
			return nil
		}
		d = atomic.LoadUint64(s.data)
	}
}

func (s *FutexSemaphore) tryDecrement() bool {
	for {
		d := atomic.LoadUint64(s.data)
		if d&semValueMask == 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(s.data, d, d-1) {
			return true
		}
	}
}

func (s *FutexSemaphore) unregister() {
	atomic.AddUint64(s.data, ^(semOneWaiter - 1))
}

// futexWait sleeps while the count word is still zero. The futex is not
// private: the producer lives in another process.
// futexWait 在计数字仍为 0 时休眠。futex 不是私有的：生产者位于另一个进程。
func (s *FutexSemaphore) futexWait(deadline time.Time) error {
	ts := unix.NsecToTimespec(deadline.UnixNano())
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(s.data)), // low 32 bits on little-endian
		uintptr(futexWaitBitset|futexClockRealtime),
		0,
		uintptr(unsafe.Pointer(&ts)),
		0,
		uintptr(futexBitsetMatchAny),
	)
	if errno != 0 {
		return errno
	}
	return nil
}
