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

import (
	"math"
	"slices"
	"testing"

	"github.com/zintix-labs/shufflelab/sdk/core"
)

// reversed 產生完全反序排列 [n-1, ..., 1, 0]
func reversed(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = n - 1 - i
	}
	return p
}

// identity 產生恆等排列 [0, 1, ..., n-1]
func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// bruteInversions O(n^2) 逐對計數，作為合併排序版本的對照
func bruteInversions(p []int) int {
	inv := 0
	for i := 0; i < len(p); i++ {
		for j := i + 1; j < len(p); j++ {
			if p[i] > p[j] {
				inv++
			}
		}
	}
	return inv
}

// closedFormRho Spearman 的排列閉式解 1 - 6*sum(d^2)/(n*(n^2-1))
func closedFormRho(p []int) float64 {
	n := len(p)
	sum := 0
	for pos, orig := range p {
		d := pos - orig
		sum += d * d
	}
	return 1 - 6*float64(sum)/(float64(n)*float64(n*n-1))
}

// -----------------------------------------------------------------------------
// Displacement
// -----------------------------------------------------------------------------

// TestDisplacement 驗證位移指標的基本值
// 檢查項目: 恆等排列為 0、反序排列的總位移、單項最大位移
func TestDisplacement(t *testing.T) {
	if got := TotalDisplacement(identity(5)); got != 0 {
		t.Fatalf("identity total displacement = %d, want 0", got)
	}
	if got := MaxDisplacement(identity(5)); got != 0 {
		t.Fatalf("identity max displacement = %d, want 0", got)
	}

	// 反序 [3,2,1,0]: 位移 3,1,1,3 總和 8
	rev := reversed(4)
	if got := TotalDisplacement(rev); got != 8 {
		t.Fatalf("reversed total displacement = %d, want 8", got)
	}
	if got := MaxDisplacement(rev); got != 3 {
		t.Fatalf("reversed max displacement = %d, want 3", got)
	}
	if got := MeanDisplacement(rev); got != 2 {
		t.Fatalf("reversed mean displacement = %v, want 2", got)
	}
}

// TestDisplacementInto 驗證逐項位移寫入與緩衝重用
func TestDisplacementInto(t *testing.T) {
	p := []int{2, 0, 1} // pos0=orig2(位移2), pos1=orig0(位移1), pos2=orig1(位移1)
	got := DisplacementInto(p, nil)
	if !slices.Equal(got, []int{1, 1, 2}) {
		t.Fatalf("unexpected displacement: %v", got)
	}

	// 緩衝重用：容量足夠時不應重新配置
	buf := make([]int, 8)
	got2 := DisplacementInto(p, buf)
	if &got2[0] != &buf[0] {
		t.Fatal("expected buffer reuse")
	}
	if len(got2) != len(p) {
		t.Fatalf("length mismatch: %d", len(got2))
	}
}

// TestMeanDisplacementEmpty 驗證空排列回傳 0
func TestMeanDisplacementEmpty(t *testing.T) {
	if got := MeanDisplacement(nil); got != 0 {
		t.Fatalf("empty mean displacement = %v, want 0", got)
	}
}

// -----------------------------------------------------------------------------
// Top-K Retention
// -----------------------------------------------------------------------------

// TestTopKRetained 驗證頭部保留數的計算
// 檢查項目: 恆等排列全保留、反序排列的部分保留、k 超界處理
func TestTopKRetained(t *testing.T) {
	if got := TopKRetained(identity(10), 3); got != 3 {
		t.Fatalf("identity top-3 retained = %d, want 3", got)
	}

	// [4,3,2,1,0] 的前 2 位是 orig 4,3，都不屬於原始前 2 名
	if got := TopKRetained(reversed(5), 2); got != 0 {
		t.Fatalf("reversed top-2 retained = %d, want 0", got)
	}

	// [1,2,0]: 前 2 位是 orig 1(屬於前2) 和 orig 2(不屬於)
	if got := TopKRetained([]int{1, 2, 0}, 2); got != 1 {
		t.Fatalf("top-2 retained = %d, want 1", got)
	}

	if got := TopKRetained(identity(3), 0); got != 0 {
		t.Fatalf("k=0 retained = %d, want 0", got)
	}
	// k 大於 n 時以 n 計
	if got := TopKRetained(identity(3), 99); got != 3 {
		t.Fatalf("k>n retained = %d, want 3", got)
	}
}

// TestTopKRetention 驗證保留率的值域與邊界
func TestTopKRetention(t *testing.T) {
	if got := TopKRetention(identity(10), 5); got != 1 {
		t.Fatalf("identity retention = %v, want 1", got)
	}
	if got := TopKRetention(reversed(10), 5); got != 0 {
		t.Fatalf("reversed retention = %v, want 0", got)
	}
	if got := TopKRetention(nil, 3); got != 0 {
		t.Fatalf("empty retention = %v, want 0", got)
	}
}

// -----------------------------------------------------------------------------
// Rank Correlation
// -----------------------------------------------------------------------------

// TestSpearmanRhoExtremes 驗證秩相關的極值
// 檢查項目: 恆等排列 = +1、反序排列 = -1、n<2 定義為 1
func TestSpearmanRhoExtremes(t *testing.T) {
	if got := SpearmanRho(identity(8)); math.Abs(got-1) > 1e-12 {
		t.Fatalf("identity rho = %v, want 1", got)
	}
	if got := SpearmanRho(reversed(8)); math.Abs(got+1) > 1e-12 {
		t.Fatalf("reversed rho = %v, want -1", got)
	}
	if got := SpearmanRho([]int{0}); got != 1 {
		t.Fatalf("single rho = %v, want 1", got)
	}
	if got := SpearmanRho(nil); got != 1 {
		t.Fatalf("empty rho = %v, want 1", got)
	}
}

// TestSpearmanRhoMatchesClosedForm 驗證 Pearson 秩計算與閉式解一致
// 檢查項目: 排列無同分時，兩種算法應在浮點誤差內相等
func TestSpearmanRhoMatchesClosedForm(t *testing.T) {
	c := core.New(core.Default().New(31))
	for trial := 0; trial < 50; trial++ {
		p := identity(20)
		c.ShuffleInts(p)
		got := SpearmanRho(p)
		want := closedFormRho(p)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("rho mismatch: got %v, closed form %v, perm %v", got, want, p)
		}
	}
}

// TestKendallTauExtremes 驗證 Kendall tau 的極值
func TestKendallTauExtremes(t *testing.T) {
	if got := KendallTau(identity(8)); got != 1 {
		t.Fatalf("identity tau = %v, want 1", got)
	}
	if got := KendallTau(reversed(8)); got != -1 {
		t.Fatalf("reversed tau = %v, want -1", got)
	}
	if got := KendallTau([]int{0}); got != 1 {
		t.Fatalf("single tau = %v, want 1", got)
	}
}

// TestInversionsMatchesBruteForce 驗證合併排序逆序計數與暴力法一致
func TestInversionsMatchesBruteForce(t *testing.T) {
	c := core.New(core.Default().New(17))
	for trial := 0; trial < 50; trial++ {
		p := identity(32)
		c.ShuffleInts(p)
		got := Inversions(p)
		want := bruteInversions(p)
		if got != want {
			t.Fatalf("inversions mismatch: got %d, want %d, perm %v", got, want, p)
		}
	}
}

// TestInversionsKnownValues 驗證已知序列的逆序數
func TestInversionsKnownValues(t *testing.T) {
	cases := []struct {
		p    []int
		want int
	}{
		{identity(6), 0},
		{reversed(4), 6}, // n*(n-1)/2
		{[]int{1, 0, 2}, 1},
		{[]int{2, 0, 1}, 2},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := Inversions(tc.p); got != tc.want {
			t.Fatalf("Inversions(%v) = %d, want %d", tc.p, got, tc.want)
		}
	}
}

// TestInversionsDoesNotModifyInput 驗證計數不會改動輸入
func TestInversionsDoesNotModifyInput(t *testing.T) {
	p := []int{3, 1, 2, 0}
	snap := slices.Clone(p)
	Inversions(p)
	if !slices.Equal(p, snap) {
		t.Fatalf("input modified: %v", p)
	}
}
