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

package calc

import "gonum.org/v1/gonum/stat"

// SpearmanRho 計算排列與恆等排列之間的 Spearman 秩相關係數。
//
// 排列無同分 (tie)，秩就是值本身，因此 Spearman 相關
// 等於「位置序列」與「原始索引序列」的 Pearson 相關，
// 直接交給 gonum 的 stat.Correlation 計算。
//
// 值域 [-1, 1]：
//   - +1: 完全保序 (恆等排列)
//   - 0: 與原始順序無關 (均勻洗牌的期望值)
//   - -1: 完全反序
//
// n < 2 時秩相關無意義，定義為 1 (單一項目視為完全保序)。
func SpearmanRho(p []int) float64 {
	n := len(p)
	if n < 2 {
		return 1
	}
	x := make([]float64, n)
	y := make([]float64, n)
	for pos, orig := range p {
		x[pos] = float64(pos)
		y[pos] = float64(orig)
	}
	return stat.Correlation(x, y, nil)
}

// KendallTau 計算排列與恆等排列之間的 Kendall tau 秩相關係數。
//
// 排列無同分，tau-a 與 tau-b 相等，可由逆序數 (inversions) 閉式求得：
//
//	tau = 1 - 4 * inv / (n * (n-1))
//
// 逆序數以合併排序計數，O(n log n) 且為精確整數，
// 不經過浮點配對比較。
//
// n < 2 時定義為 1。
func KendallTau(p []int) float64 {
	n := len(p)
	if n < 2 {
		return 1
	}
	inv := Inversions(p)
	return 1 - 4*float64(inv)/float64(n*(n-1))
}

// Inversions 計算序列的逆序對數量：滿足 i < j 且 p[i] > p[j] 的配對數。
//
// 恆等排列為 0，完全反序為 n*(n-1)/2。
// 實作為合併排序計數，會複製輸入，不修改 p。
func Inversions(p []int) int {
	n := len(p)
	if n < 2 {
		return 0
	}
	return InversionsInto(p, make([]int, n), make([]int, n))
}

// InversionsInto 與 Inversions 相同，但由呼叫端提供兩塊暫存區，
// 供模擬等熱路徑重用。work 與 tmp 容量不足時重新配置。
func InversionsInto(p []int, work []int, tmp []int) int {
	n := len(p)
	if n < 2 {
		return 0
	}
	if cap(work) < n {
		work = make([]int, n)
	}
	if cap(tmp) < n {
		tmp = make([]int, n)
	}
	work = work[:n]
	tmp = tmp[:n]
	copy(work, p)
	return mergeCount(work, tmp)
}

// mergeCount 對 a 原地排序並回傳逆序對數，tmp 為等長暫存區。
func mergeCount(a []int, tmp []int) int {
	n := len(a)
	if n < 2 {
		return 0
	}
	mid := n / 2
	inv := mergeCount(a[:mid], tmp[:mid])
	inv += mergeCount(a[mid:], tmp[mid:])

	// 合併兩個已排序的半段，左半剩餘的元素都大於當前右半元素時，
	// 一次貢獻 (mid - i) 個逆序對
	i, j, k := 0, mid, 0
	for i < mid && j < n {
		if a[i] <= a[j] {
			tmp[k] = a[i]
			i++
		} else {
			tmp[k] = a[j]
			j++
			inv += mid - i
		}
		k++
	}
	copy(tmp[k:], a[i:mid])
	copy(tmp[k+mid-i:], a[j:])
	copy(a, tmp)
	return inv
}
