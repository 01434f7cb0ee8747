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

// 本檔案 (cdfscan.go) 實作逐次累積權重抽籤 (sequential CDF scan)。
//
// 這是加權不放回抽樣最直觀的定義式寫法：
// 每一輪把剩餘權重排成一條數線，丟一個 [0, total) 的隨機數進去，
// 看它落在哪個區段就抽走誰，然後把該區段從數線上移除。
//
// WeightedShuffle (exponential race) 與本演算法產生的排列
// 服從相同的機率法則；保留兩種實作的原因：
//   - 小型清單上線性掃描的常數成本低於排序。
//   - race 實作的正確性可以用本實作做分布層級的交叉驗證。

package sampler

import (
	"math"

	"github.com/zintix-labs/shufflelab/sdk/core"
)

// CDFShuffle 加權不放回抽樣 - 逐次累積掃描 (Sequential CDF Scan)
//
// 核心邏輯：
//  1. 計算剩餘權重總和 total。
//  2. 產生 u = Float64() * total，線性掃描累積權重，
//     找到第一個滿足 u < cum + w[j] 的 j。
//  3. 記錄 j 的原始索引，將其自候選池移除 (保持其餘順序)，total -= w[j]。
//  4. 重複直到候選池為空。
//
// 特殊處理：
//   - 權重 < 0 或 NaN：Panic (視為程式錯誤，與 WeightedShuffle 一致)。
//   - 剩餘權重總和為 0 (全為零權重)：退化為均勻抽選，
//     因此零權重項目仍會出現在排列尾端，順序隨機。
//   - 浮點累加誤差導致掃描越界時，取最後一個候選 (機率上可忽略)。
//
// 複雜度：
//   - 時間：O(N^2) (每輪一次線性掃描)
//   - 空間：O(N)
//
// N 很小時 (數十筆) 本實作比 WeightedShuffle 的排序更便宜；
// N 大時應改用 WeightedShuffle。
func CDFShuffle[T Numbers](c *core.Core, weights []T) []int {
	return CDFShuffleInto(c, weights, nil)
}

// CDFShuffleInto 與 CDFShuffle 相同，但把結果寫入 dst (容量重用)。
// dst 容量不足時重新配置；掃描用的候選池仍為每次呼叫配置。
func CDFShuffleInto[T Numbers](c *core.Core, weights []T, dst []int) []int {
	n := len(weights)
	if n == 0 {
		return dst[:0]
	}

	// 候選池：pool 是剩餘權重，idx 是對應的原始索引。
	// 移除採用保序搬移 (copy)，讓「剩餘清單」始終維持原始相對順序。
	pool := make([]float64, n)
	idx := make([]int, n)
	total := 0.0
	for i, w := range weights {
		fw := float64(w)
		if fw < 0 || math.IsNaN(fw) {
			panic("sampler: invalid weight")
		}
		pool[i] = fw
		idx[i] = i
		total += fw
	}

	if cap(dst) < n {
		dst = make([]int, 0, n)
	}
	result := dst[:0]
	for len(pool) > 0 {
		var j int
		if total > 0 {
			u := c.Float64() * total
			cum := 0.0
			j = len(pool) - 1 // 浮點誤差的保底：掃不到就取最後一個
			for k, w := range pool {
				cum += w
				if u < cum {
					j = k
					break
				}
			}
		} else {
			// 剩餘權重全為 0：均勻抽選收尾
			j = c.IntN(len(pool))
		}

		result = append(result, idx[j])
		total -= pool[j]
		// 連續扣減會累積誤差，total 略低於 0 時視為歸零
		if total < 0 {
			total = 0
		}

		// 保序移除第 j 個候選
		copy(pool[j:], pool[j+1:])
		copy(idx[j:], idx[j+1:])
		pool = pool[:len(pool)-1]
		idx = idx[:len(idx)-1]
	}

	return result
}
