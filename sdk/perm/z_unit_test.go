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

package perm

import (
	"slices"
	"testing"
)

// TestIdentity 驗證恆等排列的生成
// 檢查項目: 長度與內容，n=0 時回傳空切片
func TestIdentity(t *testing.T) {
	if got := Identity(4); !slices.Equal(got, []int{0, 1, 2, 3}) {
		t.Fatalf("unexpected identity: %v", got)
	}
	if got := Identity(0); len(got) != 0 {
		t.Fatalf("expected empty identity, got %v", got)
	}
}

// TestInvert 驗證反排列計算
// 檢查項目: inv[p[pos]] == pos，且二次反轉還原
func TestInvert(t *testing.T) {
	p := []int{2, 0, 3, 1}
	inv := Invert(p)
	if !slices.Equal(inv, []int{1, 3, 0, 2}) {
		t.Fatalf("unexpected inverse: %v", inv)
	}
	if !slices.Equal(Invert(inv), p) {
		t.Fatalf("double invert should restore: %v", Invert(inv))
	}
}

// TestApply 驗證依排列重排資料
// 檢查項目: out[pos] = src[p[pos]]，原始資料不被修改
func TestApply(t *testing.T) {
	p := []int{2, 0, 1}
	src := []string{"a", "b", "c"}
	got := Apply(p, src)
	if !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Fatalf("unexpected apply result: %v", got)
	}
	if !slices.Equal(src, []string{"a", "b", "c"}) {
		t.Fatalf("source was modified: %v", src)
	}
}

// TestApplyLengthMismatchPanics 驗證長度不符時 panic
func TestApplyLengthMismatchPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for length mismatch")
		}
	}()
	Apply([]int{0, 1}, []int{7})
}

// TestIsValid 驗證排列合法性檢查
// 檢查項目: 合法排列、重複、越界、空排列
func TestIsValid(t *testing.T) {
	cases := []struct {
		name string
		p    []int
		want bool
	}{
		{"valid", []int{1, 0, 2}, true},
		{"empty", []int{}, true},
		{"duplicate", []int{0, 0, 2}, false},
		{"out of range", []int{0, 3, 1}, false},
		{"negative", []int{0, -1, 2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValid(tc.p); got != tc.want {
				t.Fatalf("IsValid(%v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}
