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

// Package sampler 提供一系列加權抽樣演算法與工具。
//
// 本檔案 (weightitem.go) 實作 exponential race 系列的加權不放回抽樣，
// 以及排序與堆積操作所需的內部輔助結構。
//
// 結構說明：
//   - weightItem: 基本單元，封裝原始索引 (idx) 與隨機分數 (score)。
//   - weightHeap: 實作 heap.Interface 的 Max-Heap，用於 K 抽樣的動態維護。
//
// 權重型別為泛型 Numbers：排名權重是 float64（冪次轉換的產物），
// profile 混抽權重是 int，兩者共用同一套演算法。
//
// 注意：weights 中某個 weight = 0 時，WeightedShuffle 會將其排到最後，
// 但 K 抽樣 (WeightedSample) 則永不入選。
package sampler

import (
	"cmp"
	"container/heap"
	"math"
	"slices"

	"github.com/zintix-labs/shufflelab/sdk/core"
)

// weightItem 是加權排序中的基本單元。
type weightItem struct {
	idx   int     // 原始數據的 Index
	score float64 // 根據權重與隨機數計算出的排序分數
}

// weightHeap 實作了 heap.Interface，用於維護一個 Max-Heap (最大堆)。
//
// 用途：WeightedSample 需要保留分數「最小」的前 K 個元素，
// 因此維護一個容量為 K 的 Max-Heap，堆頂 (heap[0]) 是這 K 個元素中
// 「分數最大」(最該被淘汰) 的那個；新元素分數比堆頂小時就替換堆頂。
type weightHeap []weightItem

func (h weightHeap) Len() int { return len(h) }

// Less 實作 Max-Heap 的關鍵：
// Go 的 heap 預設 h[0] 是最小值（Min-Heap）；
// 當 i 的分數大於 j 時回傳 true，讓「分數大」的元素浮到堆頂。
func (h weightHeap) Less(i, j int) bool { return h[i].score > h[j].score }

func (h weightHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *weightHeap) Push(x any) {
	*h = append(*h, x.(weightItem))
}

func (h *weightHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// raceScore 計算單一元素的競速分數，並統一處理非法權重。
//
// 約定：
//   - 權重 < 0 或 NaN：Panic（呼叫端應在進入抽樣前完成驗證）。
//   - 權重 == 0：回傳 +Inf，該元素會沉到排列的最後。
func raceScore[T Numbers](c *core.Core, w T) float64 {
	fw := float64(w)
	if fw < 0 || math.IsNaN(fw) {
		panic("sampler: invalid weight")
	}
	if fw == 0 {
		return math.Inf(1)
	}

	// 核心公式： Score = ExpFloat64 / Weight
	// ExpFloat64 是隨機的「路程」，Weight 是「速度」，
	// Score 代表「跑完所需時間」；時間越短 (Score 越小)，排名越靠前。
	return c.ExpFloat64() / fw
}

// -----------------------------------------------------------------------------
// 公開 API (Public APIs)
// -----------------------------------------------------------------------------

// WeightedShuffle 加權不放回抽樣 - 全排列 (Weighted Shuffle without Replacement)
//
// 演算法：Efraimidis-Spirakis Algorithm A-ExpJ
// 參考文獻：2006, "Weighted random sampling with a reservoir"
//
// 核心邏輯：
//  1. 為每個元素 i 生成特徵分數 $k_i = U_i^(1/w_i)$。
//     為了數值穩定與效能，實作上使用 Log 轉換： $Score_i = -ln(U_i) / w_i$，
//     其中 $-ln(U_i)$ 即為標準指數分佈 (ExpFloat64)。
//  2. 權重 $w_i$ 越大，分母越大，分數 $Score_i$ 越小。
//  3. 將所有元素按 Score 由小到大排序，排序結果即為加權隨機排列。
//
// 分布等價性：此排列與「逐一做累積權重抽籤並移除中籤者」(CDFShuffle)
// 的機率法則完全相同，但複雜度由 O(N^2) 降為 O(N log N)。
//
// 特殊處理：
//   - 權重 < 0 或 NaN：Panic (視為程式錯誤)。
//   - 權重 == 0：分數設為 +Inf，保證排在列表最後面。
//
// 複雜度：
//   - 時間：O(N log N) (瓶頸在排序)
//   - 空間：O(N)
func WeightedShuffle[T Numbers](c *core.Core, weights []T) []int {
	return WeightedShuffleInto(c, weights, nil)
}

// WeightedShuffleInto 與 WeightedShuffle 相同，但把結果寫入 dst (容量重用)。
// dst 容量不足時重新配置；分數暫存仍為每次呼叫配置。
func WeightedShuffleInto[T Numbers](c *core.Core, weights []T, dst []int) []int {
	n := len(weights)
	if n == 0 {
		return dst[:0]
	}

	// 1. 分數生成 (Score Generation)
	// 直接分配 n 大小的 slice，避免多次 append 的擴容開銷
	items := make([]weightItem, n)
	for i, w := range weights {
		items[i] = weightItem{idx: i, score: raceScore(c, w)}
	}

	// 2. 排序 (Sorting)
	// 依照 Score 由小到大 (Ascending) 排序
	slices.SortFunc(items, func(a, b weightItem) int {
		return cmp.Compare(a.score, b.score)
	})

	// 3. 提取結果 (Extract Indices)
	if cap(dst) < n {
		dst = make([]int, n)
	}
	result := dst[:n]
	for i, item := range items {
		result[i] = item.idx
	}

	return result
}

// WeightedShuffleWithFilter 加權不放回抽樣 - 全排列但過濾零權重
//
// 行為差異：
//   - WeightedShuffle: 回傳長度 N，權重為 0 者排在最後。
//   - WeightedShuffleWithFilter: 回傳長度 M (M <= N)，僅包含權重 > 0 的項目。
//
// 適用場景：
//   - 排列結果不應包含無法曝光的項目（例如 inequality 極大時冪次下溢為 0 的尾端）。
func WeightedShuffleWithFilter[T Numbers](c *core.Core, weights []T) []int {
	n := len(weights)
	if n == 0 {
		return []int{}
	}

	// 預分配容量但長度為 0，動態 append 有效項目
	items := make([]weightItem, 0, n)
	for i, w := range weights {
		score := raceScore(c, w)
		if math.IsInf(score, 1) {
			continue
		}
		items = append(items, weightItem{idx: i, score: score})
	}

	slices.SortFunc(items, func(a, b weightItem) int {
		return cmp.Compare(a.score, b.score)
	})

	result := make([]int, len(items))
	for i, item := range items {
		result[i] = item.idx
	}

	return result
}

// WeightedSample 加權不放回抽樣 - 只取前 K 個 (Weighted Reservoir Sampling)
//
// 演算法：Efraimidis-Spirakis Algorithm A-Res
//
// 核心邏輯：
//
//	維護一個容量為 K 的「領獎台」(Reservoir)，裡面存放目前分數最小的 K 個元素。
//	使用 Max-Heap 實作領獎台，以 O(1) 找到 K 個之中「分數最大」(最該被淘汰) 的人。
//
// 相比 WeightedShuffle 的優勢：
//  1. 空間複雜度僅為 O(K)：不需要分配 N 大小的記憶體 (當 N=10000, K=3 時差異巨大)。
//  2. 時間複雜度為 O(N log K)：當 K << N 時，比全排序快得多。
//
// 適用場景：只需要排列的頭部（例如僅回傳推薦清單的前 K 名）。
func WeightedSample[T Numbers](c *core.Core, weights []T, k int) []int {
	n := len(weights)
	// 邊界檢查：若 k <= 0 或無資料，回傳空
	if k <= 0 || n == 0 {
		return []int{}
	}
	// 若要取的數量超過總數，邏輯上等同於全取 (但排序依據權重)
	if k > n {
		k = n
	}

	// 建立一個 Max-Heap (容量為 K)，預分配避免 append 擴容
	h := make(weightHeap, 0, k)

	for i, w := range weights {
		score := raceScore(c, w)
		// 權重為 0 的元素無法被選中，直接忽略
		if math.IsInf(score, 1) {
			continue
		}

		if h.Len() < k {
			// 1. 如果堆還沒滿，直接放入
			heap.Push(&h, weightItem{idx: i, score: score})
		} else if score < h[0].score {
			// 2. 堆滿時，分數比「堆裡最爛(最大)」還小才入選。
			// 優化技巧：直接改 root 並 Fix，比 Pop() + Push() 少一次 log K 操作
			h[0] = weightItem{idx: i, score: score}
			heap.Fix(&h, 0)
		}
	}

	// 3. 取出結果 (Extract Results)
	// 注意：如果有效(>0)權重數量 < k，heap 的長度會小於 k，
	// 必須使用 h.Len() 作為實際結果長度。
	actualCount := h.Len()
	if actualCount == 0 {
		return []int{}
	}

	result := make([]int, actualCount)
	// 回傳結果需符合「由小到大」(排名先後) 的直覺，因此依序 Pop。
	// Max-Heap Pop 出來的是「最大」的(最後一名)，所以倒序填入 result。
	for i := actualCount - 1; i >= 0; i-- {
		item := heap.Pop(&h).(weightItem)
		result[i] = item.idx
	}

	return result
}
