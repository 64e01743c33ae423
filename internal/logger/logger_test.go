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

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seatunnel/ka-agent/internal/config"
)

func TestLevelRoutesToStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log, err := NewWithOptions(config.LogConfig{Level: "info", Format: "console"}, Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("dead cores", zap.Int("count", 3))
	log.Error("No updates. Exiting..")
	require.NoError(t, log.Sync())

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "dead cores")
	assert.NotContains(t, stdout.String(), "No updates")
	assert.Contains(t, stderr.String(), "No updates. Exiting..")
}

func TestJSONFormat(t *testing.T) {
	var stdout bytes.Buffer
	log, err := NewWithOptions(config.LogConfig{Level: "debug", Format: "json"}, Options{Stdout: &stdout, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Debug("probe", zap.String("shm", "/x"))
	require.NoError(t, log.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &entry))
	assert.Equal(t, "probe", entry["msg"])
	assert.Equal(t, "/x", entry["shm"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ka-agent.log")
	log, err := NewWithOptions(config.LogConfig{
		Level:      "warn",
		Format:     "console",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}, Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Info("skipped")
	log.Warn("Empty dead core report")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Empty dead core report")
	assert.False(t, strings.Contains(string(data), "skipped"))
}

func TestInvalidSettings(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"INFO":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
