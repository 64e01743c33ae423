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

package monitor

import (
	"time"
)

// EventType represents the type of watchdog event
// EventType 表示看门狗事件类型
type EventType string

const (
	EventStarted     EventType = "started"
	EventDeadCores   EventType = "dead_cores"
	EventEmptyReport EventType = "empty_report"
	EventTimeout     EventType = "timeout"
	EventWaitError   EventType = "wait_error"
	EventStopped     EventType = "stopped"
)

// Event represents one watchdog cycle outcome or lifecycle change
// Event 表示一次看门狗周期结果或生命周期变化
type Event struct {
	Type                EventType  `json:"type"`
	Timestamp           time.Time  `json:"timestamp"`
	MostRecentTimestamp uint64     `json:"most_recent_timestamp,omitempty"`
	DeadCores           []int      `json:"dead_cores,omitempty"`
	ConsecutiveTimeouts int        `json:"consecutive_timeouts"`
	Progressed          bool       `json:"progressed,omitempty"`
	Reason              StopReason `json:"reason,omitempty"`
	Error               string     `json:"error,omitempty"`
	Err                 error      `json:"-"`
}

// EventHandler is called when watchdog events occur
// EventHandler 在看门狗事件发生时被调用
type EventHandler func(event *Event)
