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

package semwait

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSemaphore struct {
	err      error
	deadline time.Time
}

func (s *stubSemaphore) TimedWait(deadline time.Time) error {
	s.deadline = deadline
	return s.err
}

func TestWaitForSignalClassification(t *testing.T) {
	deadline := time.Now().Add(2 * time.Second)

	sem := &stubSemaphore{}
	res := WaitForSignal(sem, deadline)
	assert.Equal(t, Signaled, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, deadline, sem.deadline)

	res = WaitForSignal(&stubSemaphore{err: ErrTimedOut}, deadline)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.NoError(t, res.Err)

	res = WaitForSignal(&stubSemaphore{err: errors.New("EINVAL")}, deadline)
	assert.Equal(t, Failed, res.Outcome)
	require.Error(t, res.Err)

	var we *WaitError
	require.True(t, errors.As(res.Err, &we))
	assert.Contains(t, res.Err.Error(), "sem_timedwait() error (EINVAL)")
}

func TestWaitForSignalWrappedTimeout(t *testing.T) {
	res := WaitForSignal(&stubSemaphore{err: errors.Join(errors.New("ctx"), ErrTimedOut)}, time.Now())
	assert.Equal(t, TimedOut, res.Outcome)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "signaled", Signaled.String())
	assert.Equal(t, "timed_out", TimedOut.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
