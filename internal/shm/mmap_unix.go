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

//go:build unix

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapObject opens path the way shm_open(name, O_RDWR) does and maps size bytes MAP_SHARED.
// mapObject 以 shm_open(name, O_RDWR) 的方式打开 path 并以 MAP_SHARED 映射 size 字节。
func mapObject(name, path string, size int) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &AttachError{Name: name, Path: path, Err: err}
	}
	// Closing the descriptor does not affect the mapping
	// 关闭文件描述符不影响映射
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &AttachError{Name: name, Path: path, Err: err}
	}
	if st.Size < int64(size) {
		return nil, &MapError{
			Name: name,
			Size: size,
			Err:  fmt.Errorf("%w: object is %d bytes", ErrSegmentTooSmall, st.Size),
		}
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &MapError{Name: name, Size: size, Err: err}
	}
	return mem, nil
}

func unmapObject(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}
