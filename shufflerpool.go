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
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

// ShufflerPool 專門管理「某一個 feed」的所有 Shuffler 實例。
// 它透過兩個通道管理 Shuffler 生命週期：
//  1. pool：健康且可用的 Shuffler，供 Shuffle() 借出 / 歸還。
//  2. broken：在運作過程中發生錯誤或 panic 的壞 Shuffler，送往此通道以便後續檢查、維修或丟棄。
//
// 若某個 Shuffler 於洗牌執行期間發生 panic 或 fatal error，它會被送至 broken，並立即補上一個新的以維持容量。
// 整體機制確保整個系統在高併發下仍保持穩定與可用性。
type ShufflerPool struct {
	feedName      string
	feedId        profile.PID
	fp            *profile.FeedProfile
	reg           *elitist.TransformRegistry
	cf            core.PRNGFactory
	tunedFS       fs.FS
	initSeed      int64
	seedMaker     *SeedMaker
	pool          chan *Shuffler // 可用 Shuffler 的通道，用於取得和歸還
	broken        chan *Shuffler // 壞掉 Shuffler 的通道，用於送修或丟棄
	done          chan struct{}  // 關閉訊號：關閉後不再允許借出/歸還/補位
	closeOnce     sync.Once      // 確保 Close() 只執行一次
	poolsize      int            // 目標容量
	rebuild       atomic.Int32   // 重建次數
	inflight      atomic.Int32   // 使用中
	panics        atomic.Int32   // panic 次數
	fatals        atomic.Int32   // fatal 次數（Shuffler 狀態不可信）
	closeReason   atomic.Value   // string: 關閉原因
	closeInflight atomic.Int32   // 關閉當下 inflight（快照）
	closeAvail    atomic.Int32   // 關閉當下 pool 可用數量（len(pool) 快照）
	closeBroken   atomic.Int32   // 關閉當下 broken backlog（len(broken) 快照）
}

// newShufflerPool 建立指定 feed 的 Shuffler 池。
//   - n: Shuffler 數量（至少為 1）
//
// 初始化內容包含：
//   - 建立 pool（可用）與 broken（壞掉）兩個 channel
//   - 預先建立 n 個 Shuffler 並放入 pool，以便立即提供服務
func newShufflerPool(n int, fp *profile.FeedProfile, reg *elitist.TransformRegistry, cf core.PRNGFactory, seed int64, tunedFS fs.FS) (*ShufflerPool, error) {
	n = max(1, n) // 確保數量至少為1
	p := &ShufflerPool{
		feedName:  fp.FeedName,
		feedId:    fp.FeedID,
		fp:        fp,
		reg:       reg,
		cf:        cf,
		tunedFS:   tunedFS,
		initSeed:  seed,
		seedMaker: NewSeedMaker(seed),
		pool:      make(chan *Shuffler, n),   // 建立有緩衝的 Shuffler 通道，容量為 n
		broken:    make(chan *Shuffler, 100), // 建立有緩衝的壞 Shuffler 通道，容量固定為100
		done:      make(chan struct{}),
		poolsize:  n,
		inflight:  atomic.Int32{},
		rebuild:   atomic.Int32{},
	}

	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeBroken.Store(-1)

	// 上架，將 n 個新 Shuffler 放入池中
	for i := 0; i < n; i++ {
		m, err := newShufflerWithSeed(fp, reg, cf, p.seedMaker.Next(), false, tunedFS)
		if err != nil {
			return nil, err
		}
		p.pool <- m
	}
	return p, nil
}

// Close 進入關閉狀態：
//   - 通知之後所有 Shuffle() 應該直接回error
//   - defer 歸還/補位時會觀察 done，避免對已關閉狀態進行 send
func (p *ShufflerPool) Close() {
	p.closeWithReason("closed")
}

// Closed 回報池是否已進入關閉狀態。
func (p *ShufflerPool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// closeWithReason 進入關閉狀態並記錄原因（thread-safe, reason 只會被寫入一次）。
// reason 建議使用固定字串或小枚舉字串，方便 metrics/telemetry 聚合。
func (p *ShufflerPool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		// 進入關閉狀態的瞬間做一次快照，方便外部觀測與故障排查。
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeBroken.Store(int32(len(p.broken)))
		close(p.done)
	})
}

// isFatalErr 用於判斷本次錯誤是否代表「Shuffler 狀態不可信」需要淘汰/補位。
//
// 原則：
//   - panic 一律視為 broken（由 caller 端的 defer/recover 處理）
//   - 一般的 request/validation 類錯誤不應淘汰 Shuffler（例如 BadRequest）
//   - 只有錯誤型別本身明確宣告「fatal」時才視為 broken
func isFatalErr(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*errs.E); ok {
		if e.ErrLv == errs.Fatal {
			return true
		}
	}
	return false
}

func (p *ShufflerPool) Shuffle(ctx context.Context, req *dto.ShuffleRequest) (dto dto.ShuffleResult, err error) {
	var m *Shuffler
	borrowed := false
	select {
	case <-p.done:
		// 先觀察是否已關閉：關閉直接回失敗，不阻塞
		return dto, errs.NewFatal("shuffler pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		// 如果通知取消
		return dto, errs.NewWarn("shuffle canceled/timeout: " + ctx.Err().Error())
	case m = <-p.pool:
		// 有取出 Shuffler
		borrowed = true
		p.inflight.Add(1)
		// ok
	}

	// 理論上不會拿到 nil；若發生代表 pool 有嚴重問題。
	if m == nil {
		return dto, errs.NewFatal("shuffler pool got nil shuffler")
	}

	var isPanic bool

	defer func() {
		if borrowed {
			// 有借有還 再借不難
			p.inflight.Add(-1)
		}
		if r := recover(); r != nil {
			// 系統恢復
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("shuffler %s panic : %v", m.feedName, r))
		}

		// 若已關閉，直接丟棄（不歸還、不補位），避免 send 到已停止的系統。
		if p.Closed() {
			return
		}

		// 若發生 panic 或「致命錯誤」，表示 Shuffler 狀態不可信，需要送修並補位。
		// 注意：一般的 request/validation error（例如 BadRequest）不應淘汰。
		if isPanic || isFatalErr(err) {
			if !isPanic && isFatalErr(err) {
				p.fatals.Add(1)
			}
			// 1) 壞 Shuffler 送入 broken（避免阻塞）
			select {
			case p.broken <- m:
			default:
				// broken 通道滿代表系統可能正在連續故障：進入關閉狀態讓上層接管維護。
				p.closeWithReason("overwhelmed_by_failures")
				// 若外層尚未有錯誤，補一個更明確的致命訊息
				if err == nil {
					err = errs.NewFatal("shuffler pool overwhelmed by failures")
				}
				return
			}

			// 2) 補一個新 Shuffler（維持容量）
			newShuffler, buildErr := newShufflerWithSeed(p.fp, p.reg, p.cf, p.seedMaker.Next(), false, p.tunedFS)
			p.rebuild.Add(1)
			if buildErr != nil {
				err = errs.NewFatal(fmt.Sprintf("shuffler %s can not build", p.feedName))
				p.closeWithReason("rebuild_failed")
				return
			}

			// 補位前再看一次是否已關閉（避免並行 Close 後 send / block）
			select {
			case <-p.done:
				return
			case p.pool <- newShuffler:
				// ok
			}

			return
		}

		// 若有錯誤但非致命（多半是 request/validation 類錯誤），Shuffler 仍然是健康的：歸還 pool 並把 err 原樣回傳。
		// 注意：此處不改寫 err。
		select {
		case <-p.done:
			return
		case p.pool <- m:
			// ok
		}
	}()

	// 執行 Shuffler 的 Shuffle 方法
	result, shuffleErr := m.Shuffle(req)
	if shuffleErr != nil {
		err = shuffleErr
		return
	}

	dto = result
	return
}

func (mp *ShufflerPool) PoolSize() int {
	return mp.poolsize
}

func (mp *ShufflerPool) Inflight() int {
	return int(mp.inflight.Load())
}

func (mp *ShufflerPool) ReBuild() int {
	return int(mp.rebuild.Load())
}

func (mp *ShufflerPool) ClosedReason() string {
	if v := mp.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (mp *ShufflerPool) Panics() int {
	return int(mp.panics.Load())
}

func (mp *ShufflerPool) Fatals() int {
	return int(mp.fatals.Load())
}

// ShufflerPoolMetrics 是一期提供的「拉取式（pull）」觀測快照。
//
// 設計原則：
//   - 不綁任何 metrics/telemetry SDK（Prometheus / OpenTelemetry 等），由上層自己決定如何輸出。
//   - 欄位值以讀取當下為主；其中 Available/brokenBacklog 來自 len(chan)，在高併發下是「近似值」但足夠用於營運觀測。
//   - 關閉瞬間的快照（CloseInflight/CloseAvail/Closebroken）只會在 Close 時寫入一次，用於事後排查。
type ShufflerPoolMetrics struct {
	FeedName string      `json:"feed_name"`
	FeedID   profile.PID `json:"feed_id"`

	PoolSize      int    `json:"pool_size"`      // 目標容量（初始化指定）
	Available     int    `json:"available"`      // 當下可借出的 Shuffler 數（len(pool)）
	Inflight      int    `json:"inflight"`       // 使用中（借出未歸還）
	BrokenBacklog int    `json:"broken_backlog"` // broken channel 當下 backlog（len(broken)）
	Rebuild       int    `json:"rebuild"`        // 重建次數
	Panics        int    `json:"panics"`         // panic 次數
	Fatals        int    `json:"fatals"`         // fatal 次數
	Closed        bool   `json:"closed"`         // 是否已關閉
	CloseReason   string `json:"close_reason"`   // 關閉原因

	CloseInflight int `json:"close_inflight"` // Close() 當下 inflight（-1 表示尚未關閉）
	CloseAvail    int `json:"close_avail"`    // Close() 當下 available（-1 表示尚未關閉）
	Closebroken   int `json:"close_broken"`   // Close() 當下 broken backlog（-1 表示尚未關閉）
}

// Metrics 回傳一期的觀測快照；上層可用於 log、/metrics、或餵給 Prometheus/OTEL exporter。
func (mp *ShufflerPool) Metrics() ShufflerPoolMetrics {
	closed := mp.Closed()
	m := ShufflerPoolMetrics{
		FeedName:      mp.feedName,
		FeedID:        mp.feedId,
		PoolSize:      mp.poolsize,
		Available:     len(mp.pool),
		Inflight:      int(mp.inflight.Load()),
		BrokenBacklog: len(mp.broken),
		Rebuild:       int(mp.rebuild.Load()),
		Panics:        int(mp.panics.Load()),
		Fatals:        int(mp.fatals.Load()),
		Closed:        closed,
		CloseReason:   mp.ClosedReason(),
		CloseInflight: int(mp.closeInflight.Load()),
		CloseAvail:    int(mp.closeAvail.Load()),
		Closebroken:   int(mp.closeBroken.Load()),
	}
	return m
}

// Available 回傳當下 pool 可用 Shuffler 數（len(pool)）。在高併發下為近似值。
func (mp *ShufflerPool) Available() int {
	return len(mp.pool)
}
