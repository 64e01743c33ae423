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

// Package semwait blocks on the producer's death-notification semaphore.
// semwait 包在生产者的死亡通知信号量上阻塞等待。
//
// The semaphore is a counting semaphore embedded in the shared register and
// used purely as a notification: the producer posts once each time it newly
// classifies cores as DEAD, the agent consumes one count per wait and never
// posts.
// 该信号量是内嵌在共享寄存器中的计数信号量，仅用作通知：生产者每次新判定核心为 DEAD 时 post 一次，
// Agent 每次等待消费一个计数，从不 post。
package semwait

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimedOut is returned by TimedWait when the deadline passes without a post
	// ErrTimedOut 表示截止时间到达而没有收到 post
	ErrTimedOut = errors.New("semaphore wait timed out")

	// ErrUnsupported is returned on platforms without a sem_t compatible implementation
	// ErrUnsupported 表示当前平台没有兼容 sem_t 的实现
	ErrUnsupported = fmt.Errorf("shared semaphore wait: %w", errors.ErrUnsupported)
)

// Semaphore is a semaphore the agent can wait on with an absolute deadline
// Semaphore 是 Agent 可以带绝对截止时间等待的信号量
type Semaphore interface {
	// TimedWait decrements the count, blocking until it is positive or the
	// deadline passes. Returns nil, ErrTimedOut, or another error.
	// TimedWait 递减计数，阻塞直到计数为正或截止时间到达。返回 nil、ErrTimedOut 或其他错误。
	TimedWait(deadline time.Time) error
}

// Outcome classifies one wait
// Outcome 对一次等待进行分类
type Outcome int

const (
	Signaled Outcome = iota
	TimedOut
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Signaled:
		return "signaled"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one wait, with the cause when it failed
// Result 是一次等待的结果，失败时附带原因
type Result struct {
	Outcome Outcome
	Err     error
}

// WaitError wraps a failure other than the timeout itself
// WaitError 包装除超时之外的失败
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("sem_timedwait() error (%v)", e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}

// WaitForSignal waits until deadline and classifies the result.
// WaitForSignal 等待到截止时间并对结果进行分类。
// Callers compute the deadline fresh for every call (now + window).
// 调用方每次调用都重新计算截止时间（now + window）。
func WaitForSignal(sem Semaphore, deadline time.Time) Result {
	err := sem.TimedWait(deadline)
	switch {
	case err == nil:
		return Result{Outcome: Signaled}
	case errors.Is(err, ErrTimedOut):
		return Result{Outcome: TimedOut}
	default:
		return Result{Outcome: Failed, Err: &WaitError{Err: err}}
	}
}
