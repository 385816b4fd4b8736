/*
 * Copyright 2025 DeepDive Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package model

import (
	"context"
	"sync"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/compose"
)

// memoryCheckPoint keeps interrupted runs resumable by thread ID for the
// lifetime of the process. Durable backends are the runtime owner's
// concern; this store only has to survive between an interrupt and its
// resume on the same server.
type memoryCheckPoint struct {
	mu     sync.RWMutex
	points map[string][]byte
}

// NewMemoryCheckPoint returns an in-memory compose.CheckPointStore.
func NewMemoryCheckPoint(ctx context.Context) compose.CheckPointStore {
	ilog.EventInfo(ctx, "checkpoint_store_init", "kind", "memory")
	return &memoryCheckPoint{points: map[string][]byte{}}
}

var (
	sharedStoreOnce sync.Once
	sharedStore     compose.CheckPointStore
)

// SharedCheckPointStore returns the process-wide checkpoint store. Every
// compiled graph must use this one store: a resume request only finds its
// thread's checkpoint if it hits the same store the suspending run wrote to.
func SharedCheckPointStore(ctx context.Context) compose.CheckPointStore {
	sharedStoreOnce.Do(func() {
		sharedStore = NewMemoryCheckPoint(ctx)
	})
	return sharedStore
}

func (m *memoryCheckPoint) Get(ctx context.Context, checkPointID string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.points[checkPointID]
	return data, ok, nil
}

func (m *memoryCheckPoint) Set(ctx context.Context, checkPointID string, checkPoint []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[checkPointID] = checkPoint
	return nil
}
