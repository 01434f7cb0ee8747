// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shufflelab

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
)

type ShuffleRuntime struct {
	// build-time 來源（只讀引用）
	lab *ShuffleLab // 方便取 catalog/registry/corefactory 與共用一些 helper

	// data-plane：關鍵主池（每個 feed 一個 pool）
	pools map[profile.PID]*ShufflerPool
	ids   []profile.PID // 固定順序，用於觀測/列舉（來自 cat.IDs()）

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string

	// runtime 行為設定（一期先簡單，之後可擴展）
	poolSize int // 每個 feed 的池大小（BuildRuntime(n) 的 n）
}

func (rt *ShuffleRuntime) Shuffle(ctx context.Context, req *dto.ShuffleRequest) (dto.ShuffleResult, error) {
	select {
	case <-ctx.Done():
		// 如果通知取消
		return dto.ShuffleResult{}, errs.NewWarn("shuffle canceled/timeout: " + ctx.Err().Error())
	case <-rt.done:
		// done is the source of truth; keep a fast boolean for cheap reads/telemetry.
		rt.closed.Store(true)
		return dto.ShuffleResult{}, errs.NewFatal("shuffle runtime closed: " + rt.ClosedReason())
	default:
	}

	mp, ok := rt.pools[req.FeedID]
	if !ok {
		return dto.ShuffleResult{}, errs.NewWarn("feed id not found")
	}

	// pool 自己會處理 done / close / rebuild / metrics
	return mp.Shuffle(ctx, req)
}

// Close transitions the runtime into a closed state. It is safe to call multiple times.
func (rt *ShuffleRuntime) Close() {
	rt.closeWithReason("closed")
}

// closeWithReason closes the runtime and records the reason (written once).
func (rt *ShuffleRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
	})
}

// Closed reports whether the runtime has been closed.
func (rt *ShuffleRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *ShuffleRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Metrics 依 ids 固定順序回傳所有 pool 的觀測快照。
func (rt *ShuffleRuntime) Metrics() []ShufflerPoolMetrics {
	ms := make([]ShufflerPoolMetrics, 0, len(rt.ids))
	for _, id := range rt.ids {
		ms = append(ms, rt.pools[id].Metrics())
	}
	return ms
}
