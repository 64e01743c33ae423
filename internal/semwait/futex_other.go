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

//go:build !(linux && (amd64 || arm64 || riscv64 || ppc64le || loong64 || mips64le))

package semwait

import "time"

// FutexSemaphore is only available on 64-bit little-endian Linux
// FutexSemaphore 仅在 64 位小端 Linux 上可用
type FutexSemaphore struct{}

// NewFutexSemaphore always fails on this platform
func NewFutexSemaphore(word *uint64) (*FutexSemaphore, error) {
	return nil, ErrUnsupported
}

// Value always returns 0 on this platform
func (s *FutexSemaphore) Value() uint32 {
	return 0
}

// TimedWait always fails on this platform
func (s *FutexSemaphore) TimedWait(deadline time.Time) error {
	return ErrUnsupported
}
