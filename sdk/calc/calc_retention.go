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

// TopKRetained 計算原始前 k 名中，洗牌後仍留在前 k 個位置的數量。
//
// 排列表示法為 p[pos] = orig，因此只要掃描前 k 個位置，
// 數一數有多少個 orig < k 即可，O(k) 完成。
//
//   - p: 排列
//   - k: 頭部長度，k <= 0 回傳 0，k > len(p) 時以 len(p) 計
func TopKRetained(p []int, k int) int {
	if k <= 0 {
		return 0
	}
	if k > len(p) {
		k = len(p)
	}
	kept := 0
	for pos := 0; pos < k; pos++ {
		if p[pos] < k {
			kept++
		}
	}
	return kept
}

// TopKRetention 回傳頭部保留率 TopKRetained / k，範圍 [0, 1]。
//
// 參考值：均勻洗牌的期望保留率為 k/n；
// inequality 很大時趨近 1。
func TopKRetention(p []int, k int) float64 {
	if k <= 0 {
		return 0
	}
	if k > len(p) {
		k = len(p)
	}
	if k == 0 {
		return 0
	}
	return float64(TopKRetained(p, k)) / float64(k)
}
