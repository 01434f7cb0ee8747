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

// Package perm 提供排列 (Permutation) 的基本操作。
//
// 全套件的排列表示法統一為「位置 → 原始索引」：
// p[pos] = orig 代表洗牌後第 pos 位放的是原始清單的第 orig 項。
package perm

// Identity 回傳長度 n 的恆等排列 [0, 1, ..., n-1]
func Identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// Invert 計算反排列：inv[orig] = pos
//
// p 是「位置 → 原始索引」，反排列則回答「原始第 orig 項落到了哪個位置」，
// 也就是落點 (landing position) 查表。
//
//   - p: 合法排列 (呼叫端應先以 IsValid 驗證，非法輸入行為未定義)
func Invert(p []int) []int {
	inv := make([]int, len(p))
	for pos, orig := range p {
		inv[orig] = pos
	}
	return inv
}

// Apply 依排列重排 src，回傳新切片：out[pos] = src[p[pos]]
//
//   - p: 排列，長度必須等於 len(src)，否則 panic
//   - src: 原始資料 (不會被修改)
func Apply[T any](p []int, src []T) []T {
	if len(p) != len(src) {
		panic("perm: length mismatch")
	}
	out := make([]T, len(src))
	for pos, orig := range p {
		out[pos] = src[orig]
	}
	return out
}

// IsValid 檢查 p 是否為 0..n-1 的合法排列 (無越界、無重複)
func IsValid(p []int) bool {
	n := len(p)
	seen := make([]bool, n)
	for _, v := range p {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
