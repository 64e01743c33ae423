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
	"errors"
	"fmt"
)

var (
	// ErrSegmentTooSmall indicates the object exists but is smaller than the register layout
	// ErrSegmentTooSmall 表示对象存在但小于寄存器布局
	ErrSegmentTooSmall = errors.New("shared memory object is smaller than the register layout")

	// ErrInvalidName indicates a name shm_open would reject
	// ErrInvalidName 表示 shm_open 会拒绝的名称
	ErrInvalidName = errors.New("invalid shared memory object name")

	// ErrDetached is returned when the accessor has already been detached
	ErrDetached = errors.New("shared memory accessor is detached")
)

// AttachError indicates the named object does not exist or cannot be opened.
// AttachError 表示命名对象不存在或无法打开。
type AttachError struct {
	Name string
	Path string
	Err  error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("failed to open %s as SHM (%s): %v", e.Name, e.Path, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

// MapError indicates the object was opened but could not be mapped.
// MapError 表示对象已打开但无法映射。
type MapError struct {
	Name string
	Size int
	Err  error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("failed to mmap SHM %s (%d bytes): %v", e.Name, e.Size, e.Err)
}

func (e *MapError) Unwrap() error {
	return e.Err
}

// IsStartupFailure reports whether err is an AttachError or MapError
// IsStartupFailure 判断 err 是否为 AttachError 或 MapError
func IsStartupFailure(err error) bool {
	var ae *AttachError
	if errors.As(err, &ae) {
		return true
	}
	var me *MapError
	return errors.As(err, &me)
}
