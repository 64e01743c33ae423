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
	"sync"
)

// DefaultEventCacheSize is the default size of the event cache
// DefaultEventCacheSize 是事件缓存的默认大小
const DefaultEventCacheSize = 100

// EventRecorder keeps the most recent watchdog events for the status surface
// EventRecorder 为状态接口保留最近的看门狗事件
type EventRecorder struct {
	eventCache []*Event
	cacheSize  int
	total      uint64
	mu         sync.Mutex
}

// NewEventRecorder creates a new EventRecorder instance
// NewEventRecorder 创建一个新的 EventRecorder 实例
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{
		eventCache: make([]*Event, 0, DefaultEventCacheSize),
		cacheSize:  DefaultEventCacheSize,
	}
}

// SetCacheSize sets the maximum cache size, dropping the oldest events if needed
// SetCacheSize 设置最大缓存大小，必要时丢弃最旧的事件
func (r *EventRecorder) SetCacheSize(size int) {
	if size < 1 {
		size = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheSize = size
	if over := len(r.eventCache) - size; over > 0 {
		r.eventCache = append([]*Event{}, r.eventCache[over:]...)
	}
}

// Record adds an event to the cache. It matches EventHandler.
// Record 将事件添加到缓存，签名与 EventHandler 一致。
func (r *EventRecorder) Record(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Remove oldest event if cache is full / 如果缓存已满则移除最旧的事件
	if len(r.eventCache) >= r.cacheSize {
		r.eventCache = r.eventCache[1:]
	}
	r.eventCache = append(r.eventCache, event)
	r.total++
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns all.
// Recent 返回最多 n 个最新事件（按时间正序），n <= 0 时返回全部。
func (r *EventRecorder) Recent(n int) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if n > 0 && n < len(r.eventCache) {
		start = len(r.eventCache) - n
	}
	return append([]*Event{}, r.eventCache[start:]...)
}

// GetCachedEventCount returns the number of cached events
// GetCachedEventCount 返回缓存的事件数量
func (r *EventRecorder) GetCachedEventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.eventCache)
}

// Total returns how many events were ever recorded
// Total 返回累计记录的事件数量
func (r *EventRecorder) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// ClearCache clears all cached events
// ClearCache 清除所有缓存的事件
func (r *EventRecorder) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventCache = make([]*Event, 0, r.cacheSize)
}
