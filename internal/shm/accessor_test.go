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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	p, err := ObjectPath("/dev/shm", "/dpdk_keepalive_shm_name")
	require.NoError(t, err)
	assert.Equal(t, "/dev/shm/dpdk_keepalive_shm_name", p)

	p, err = ObjectPath("", "plain")
	require.NoError(t, err)
	assert.Equal(t, "/dev/shm/plain", p)

	for _, bad := range []string{"", "/", "/a/b", "..", "/."} {
		_, err := ObjectPath("/dev/shm", bad)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}
}

// TestAttachReadsProducerImage attaches to a file-backed object and reads what the producer wrote
// TestAttachReadsProducerImage 附加到文件支持的对象并读取生产者写入的内容
func TestAttachReadsProducerImage(t *testing.T) {
	dir := t.TempDir()
	layout, err := NewLayout(8)
	require.NoError(t, err)

	img := NewImage(layout)
	img.SetState(0, StateAlive)
	img.SetState(2, StateDead)
	img.SetState(5, StateMissing)
	img.SetTimestamp(0, 100)
	img.SetTimestamp(2, 42)
	img.SetTimestamp(7, 1<<40)
	_, err = img.WriteFile(dir, "/ka_test")
	require.NoError(t, err)

	acc, err := Attach("/ka_test", Options{Dir: dir, Layout: layout})
	require.NoError(t, err)
	t.Cleanup(func() { _ = acc.Detach() })

	reg := acc.Register()
	require.NotNil(t, reg)
	assert.Equal(t, 8, reg.NumCores())
	assert.Equal(t, StateAlive, reg.State(0))
	assert.Equal(t, StateDead, reg.State(2))
	assert.Equal(t, StateMissing, reg.State(5))
	assert.Equal(t, StateUnused, reg.State(7))
	assert.Equal(t, uint64(100), reg.Timestamp(0))
	assert.Equal(t, uint64(42), reg.Timestamp(2))
	assert.Equal(t, uint64(1<<40), reg.Timestamp(7))
	assert.Equal(t, filepath.Join(dir, "ka_test"), acc.Path())
}

func TestAttachMissingObject(t *testing.T) {
	_, err := Attach("/does_not_exist", Options{Dir: t.TempDir()})
	require.Error(t, err)

	var ae *AttachError
	require.True(t, errors.As(err, &ae))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, IsStartupFailure(err))
}

// TestAttachDegenerateObject covers an empty/short object, which must not be mapped
// TestAttachDegenerateObject 覆盖空的或过短的对象，不允许映射
func TestAttachDegenerateObject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short"), make([]byte, 16), 0o600))

	_, err := Attach("/short", Options{Dir: dir})
	require.Error(t, err)

	var me *MapError
	require.True(t, errors.As(err, &me))
	assert.ErrorIs(t, err, ErrSegmentTooSmall)
	assert.True(t, IsStartupFailure(err))
}

func TestAttachInvalidLayout(t *testing.T) {
	_, err := Attach("/x", Options{Dir: t.TempDir(), Layout: Layout{MaxCores: -4}})
	var me *MapError
	require.True(t, errors.As(err, &me))
}

func TestDetachIsIdempotentAndKeepsObject(t *testing.T) {
	dir := t.TempDir()
	img := NewImage(DefaultLayout())
	path, err := img.WriteFile(dir, "keep")
	require.NoError(t, err)

	acc, err := Attach("keep", Options{Dir: dir})
	require.NoError(t, err)

	require.NoError(t, acc.Detach())
	require.NoError(t, acc.Detach())
	assert.Nil(t, acc.Register())

	// The object belongs to the producer and must survive the agent
	// 对象属于生产者，必须在 Agent 退出后仍然存在
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRegisterSeesLaterWrites(t *testing.T) {
	img := NewImage(DefaultLayout())
	reg := img.Register()

	assert.Equal(t, uint64(0), reg.Timestamp(127))
	img.SetTimestamp(127, 9)
	img.SetState(127, StateDead)
	assert.Equal(t, uint64(9), reg.Timestamp(127))
	assert.Equal(t, StateDead, reg.State(127))
}

func TestNewRegisterRejectsShortMemory(t *testing.T) {
	_, err := NewRegister(make([]byte, 8), DefaultLayout())
	assert.ErrorIs(t, err, ErrSegmentTooSmall)
}
