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
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"unsafe"
)

// Image is an in-process register image laid out exactly like the producer's
// structure. It plays the producer's side in tests and tooling.
// Image 是进程内的寄存器镜像，布局与生产者结构完全一致。用于测试和工具中扮演生产者一方。
type Image struct {
	layout Layout
	words  []uint64
}

// NewImage allocates a zeroed, 8-byte aligned image
// NewImage 分配一个全零、8 字节对齐的镜像
func NewImage(layout Layout) *Image {
	return &Image{layout: layout, words: make([]uint64, layout.Size()/timestampSize)}
}

// Bytes returns the raw image
func (img *Image) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(img.words))), len(img.words)*timestampSize)
}

// Register returns a view over the image
func (img *Image) Register() *Register {
	reg, err := NewRegister(img.Bytes(), img.layout)
	if err != nil {
		panic(err)
	}
	return reg
}

// SetState writes core_state[i]
func (img *Image) SetState(i int, s CoreState) {
	off := img.layout.StatesOffset() + i*stateSize
	binary.NativeEndian.PutUint32(img.Bytes()[off:], uint32(s))
}

// SetTimestamp writes core_last_seen_times[i]
func (img *Image) SetTimestamp(i int, ts uint64) {
	off := img.layout.TimestampsOffset() + i*timestampSize
	binary.NativeEndian.PutUint64(img.Bytes()[off:], ts)
}

// SetSemaphoreValue writes the semaphore count, leaving the waiter count as is
// SetSemaphoreValue 写入信号量计数，保留等待者计数
func (img *Image) SetSemaphoreValue(v uint32) {
	binary.NativeEndian.PutUint32(img.Bytes()[0:], v)
}

// WriteFile stores the image as the named object under dir, the way the producer's
// shm_open + ftruncate + mmap would leave it.
// WriteFile 将镜像保存为 dir 下的命名对象，等同于生产者 shm_open + ftruncate + mmap 后的结果。
func (img *Image) WriteFile(dir, name string) (string, error) {
	path := filepath.Join(dir, strings.TrimLeft(name, "/"))
	if err := os.WriteFile(path, img.Bytes(), 0o600); err != nil {
		return "", err
	}
	return path, nil
}
