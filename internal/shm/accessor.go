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
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Options configures Attach
// Options 配置 Attach
type Options struct {
	// Dir is where POSIX shared memory objects live (default /dev/shm)
	// Dir 是 POSIX 共享内存对象所在目录（默认 /dev/shm）
	Dir string

	// Layout must match the producer's layout bit for bit
	// Layout 必须与生产者的布局逐位一致
	Layout Layout

	// Logger receives detach warnings (nil disables logging)
	// Logger 接收解除映射的警告（nil 表示不记录）
	Logger *zap.Logger
}

// Accessor owns the mapping of an attached register, not the object behind it.
// Accessor 拥有已附加寄存器的映射，而不是其背后的对象。
type Accessor struct {
	name   string
	path   string
	layout Layout
	logger *zap.Logger

	mu  sync.Mutex
	mem []byte
	reg *Register
}

// ObjectPath resolves a shm_open style name ("/foo") to its path under dir
// ObjectPath 将 shm_open 风格的名称（"/foo"）解析为 dir 下的路径
func ObjectPath(dir, name string) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	trimmed := strings.TrimLeft(name, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, trimmed), nil
}

// Attach opens the existing object read-write and maps it at the layout's exact size.
// Attach 以读写方式打开已存在的对象，并按布局的精确大小映射。
//
// Read-write is required so that the mapping matches the producer's; the
// agent itself only reads. Fails with *AttachError or *MapError, never retries.
// 需要读写模式以与生产者的映射一致；Agent 本身只读。失败时返回 *AttachError 或 *MapError，不重试。
func Attach(name string, opts Options) (*Accessor, error) {
	if opts.Layout.MaxCores == 0 {
		opts.Layout = DefaultLayout()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if _, err := NewLayout(opts.Layout.MaxCores); err != nil {
		return nil, &MapError{Name: name, Err: err}
	}

	path, err := ObjectPath(opts.Dir, name)
	if err != nil {
		return nil, &AttachError{Name: name, Path: path, Err: err}
	}

	mem, err := mapObject(name, path, opts.Layout.Size())
	if err != nil {
		return nil, err
	}

	reg, err := NewRegister(mem, opts.Layout)
	if err != nil {
		_ = unmapObject(mem)
		return nil, &MapError{Name: name, Size: opts.Layout.Size(), Err: err}
	}

	return &Accessor{
		name:   name,
		path:   path,
		layout: opts.Layout,
		logger: opts.Logger,
		mem:    mem,
		reg:    reg,
	}, nil
}

// Name returns the object name as given to Attach
func (a *Accessor) Name() string {
	return a.name
}

// Path returns the resolved object path
func (a *Accessor) Path() string {
	return a.path
}

// Register returns the typed view, or nil after Detach
// Register 返回类型化视图，Detach 之后返回 nil
func (a *Accessor) Register() *Register {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reg
}

// Detach unmaps the segment. It is best effort: a failure is logged as a
// warning and returned, and callers are expected not to escalate it.
// Detach 解除映射。尽力而为：失败会记录警告并返回，调用方不应升级处理。
// The underlying object is never closed or unlinked.
// 底层对象永远不会被关闭或删除。
func (a *Accessor) Detach() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mem == nil {
		return nil
	}

	err := unmapObject(a.mem)
	a.mem = nil
	a.reg = nil
	if err != nil {
		a.logger.Warn("munmap() failed", zap.String("name", a.name), zap.Error(err))
		return fmt.Errorf("failed to unmap %s: %w", a.name, err)
	}
	return nil
}
