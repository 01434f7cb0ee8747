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

// Package calc 提供排列的量化指標計算。
//
// 這些指標描述一次洗牌「打亂了多少」：
//   - 位移 (displacement): 每個項目離開原位的距離。
//   - 頭部保留率 (top-k retention): 原始前段項目仍留在前段的比例。
//   - 秩相關 (rank correlation): 排列與恆等排列的相關程度。
//
// inequality 越大，位移越小、保留率與相關係數越高；
// inequality = 0 時各指標收斂到均勻洗牌的理論值。
// 模擬器逐輪呼叫這些函數累積統計，tuner 則以聚合值作為調參目標。
package calc

// DisplacementInto 計算每個原始項目的位移量，寫入 dst 並回傳。
//
// 排列表示法為 p[pos] = orig，位移定義為 |pos - orig|。
// dst[orig] 存放原始第 orig 項的位移；dst 容量不足時重新配置。
//
//   - p: 排列 (呼叫端保證合法)
//   - dst: 重用緩衝，可為 nil
func DisplacementInto(p []int, dst []int) []int {
	n := len(p)
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	for pos, orig := range p {
		d := pos - orig
		if d < 0 {
			d = -d
		}
		dst[orig] = d
	}
	return dst
}

// TotalDisplacement 回傳排列的位移總和。
//
// 模擬的熱迴圈用這個單值版本，避免為逐項結果配置記憶體。
func TotalDisplacement(p []int) int {
	sum := 0
	for pos, orig := range p {
		d := pos - orig
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// MaxDisplacement 回傳排列中最大的單項位移。
func MaxDisplacement(p []int) int {
	max := 0
	for pos, orig := range p {
		d := pos - orig
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

// MeanDisplacement 回傳排列的平均位移。
// 空排列回傳 0。
//
// 參考值：均勻洗牌的期望平均位移約為 n/3；
// inequality 很大時趨近 0。
func MeanDisplacement(p []int) float64 {
	n := len(p)
	if n == 0 {
		return 0
	}
	return float64(TotalDisplacement(p)) / float64(n)
}
