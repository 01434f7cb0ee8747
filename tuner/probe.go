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

package tuner

import (
	"sync/atomic"

	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/errs"
)

// target 單一清單長度的調校狀態。每個 target 綁一台獨立 seed 的 Shuffler，
// 整趟調校可由 (configs, seed) 完整重現。
type target struct {
	n     int
	m     *shufflelab.Shuffler
	value float64       // 收斂出的 inequality
	stay  float64       // value 對應的量測命中率
	got   atomic.Uint64 // 量測次數（progress printer 讀）
	isOK  bool
}

// measure 量測指定 inequality 的命中率：trials 次內部洗牌統計 metric 命中比例。
// 走 ShuffleInternalAt 熱路徑，不經請求校驗；n 與 q 由 fit 保證合法。
func (t *Tuner) measure(tg *target, q float64, trials int) float64 {
	hit := 0
	for range trials {
		sr := tg.m.ShuffleInternalAt(tg.n, q)
		if t.metric(sr) {
			hit++
		}
	}
	tg.got.Add(1)
	return float64(hit) / float64(trials)
}

// bracket 建立包夾 [lo, hi]：從 q=1 開始向上加倍，直到命中率跨過目標。
// 命中率隨 inequality 單調上升，加倍搜尋必然在上限內跨過目標或報錯。
//
// 特例：q=0（均勻洗牌）已達標時回傳 hi == lo == 0，由 fit 判定為底線解。
func (t *Tuner) bracket(tg *target, top float64, trials int) (lo, sLo, hi, sHi float64, err error) {
	lo = 0
	sLo = t.measure(tg, lo, trials)
	if sLo >= top {
		return 0, sLo, 0, sLo, nil
	}
	hi = 1
	sHi = t.measure(tg, hi, trials)
	for sHi < top {
		lo, sLo = hi, sHi
		hi *= 2
		if hi > maxInequality {
			return 0, 0, 0, 0, errs.Warnf("n=%d: top rate %.4f not reachable within inequality <= %g", tg.n, top, maxInequality)
		}
		sHi = t.measure(tg, hi, trials)
	}
	return lo, sLo, hi, sHi, nil
}
