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

package elitist

import (
	"math"
	"testing"

	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/core"
)

func testCore(seed int64) *core.Core {
	return core.New(core.Default().New(seed))
}

// assertPerm 驗證 p 是 [0,n) 的合法排列。
func assertPerm(t *testing.T, p []int, n int) {
	t.Helper()
	if len(p) != n {
		t.Fatalf("perm length mismatch: got %d want %d", len(p), n)
	}
	seen := make([]bool, n)
	for _, v := range p {
		if v < 0 || v >= n || seen[v] {
			t.Fatalf("not a permutation: %v", p)
		}
		seen[v] = true
	}
}

const testProfileYAML = `
feed_name: demo_feed
feed_id: 7
transform: elitist
inequality: 2
item_setting:
  count: 6
sampler_setting:
  strategy: auto
  with_weights: true
`

func testProfile(t *testing.T) *profile.FeedProfile {
	t.Helper()
	fp, err := profile.GetFeedProfileByYAML([]byte(testProfileYAML))
	if err != nil {
		t.Fatalf("profile init failed: %v", err)
	}
	return fp
}

// ----- 權重建構 -----

func TestRampWeightsValues(t *testing.T) {
	const n = 5
	base := BaseWeightsInto(nil, n)
	for i := 0; i < n; i++ {
		want := 1 - float64(i)/n
		if base[i] != want {
			t.Fatalf("base[%d] = %v want %v", i, base[i], want)
		}
	}
	if base[0] != 1 {
		t.Fatalf("base[0] must be exactly 1, got %v", base[0])
	}

	w := RampWeightsInto(nil, n, 10)
	for i := 0; i < n; i++ {
		want := math.Pow(1-float64(i)/n, 10)
		if w[i] != want {
			t.Fatalf("w[%d] = %v want %v", i, w[i], want)
		}
	}

	// 冪次 0 權重全為 1
	w = RampWeightsInto(w, n, 0)
	for i, v := range w {
		if v != 1 {
			t.Fatalf("inequality 0: w[%d] = %v", i, v)
		}
	}

	// 冪次 1 等於底權重
	w = RampWeightsInto(w, n, 1)
	for i, v := range w {
		if v != base[i] {
			t.Fatalf("inequality 1: w[%d] = %v want %v", i, v, base[i])
		}
	}
}

func TestRampWeightsStrictlyDecreasing(t *testing.T) {
	for _, q := range []float64{0.5, 1, 3, 10} {
		w := RampWeightsInto(nil, 50, q)
		for i := 1; i < len(w); i++ {
			if !(w[i] < w[i-1]) {
				t.Fatalf("q=%v: w[%d]=%v not < w[%d]=%v", q, i, w[i], i-1, w[i-1])
			}
			if w[i] <= 0 {
				t.Fatalf("q=%v: w[%d]=%v must stay positive", q, i, w[i])
			}
		}
	}
}

func TestRampWeightsBufferReuse(t *testing.T) {
	dst := make([]float64, 0, 64)
	w1 := RampWeightsInto(dst, 10, 2)
	w2 := RampWeightsInto(w1, 8, 3)
	if &w1[0] != &w2[0] {
		t.Fatalf("buffer was reallocated despite sufficient capacity")
	}
	if len(w2) != 8 {
		t.Fatalf("unexpected length: %d", len(w2))
	}
}

// ----- 排列性質 -----

func TestShufflePermIsPermutation(t *testing.T) {
	c := testCore(1)
	for _, n := range []int{1, 2, 5, 33, 600} {
		for _, q := range []float64{0, 0.5, 1, 5, 10} {
			p, err := ShufflePerm(n, q, c)
			if err != nil {
				t.Fatalf("n=%d q=%v: %v", n, q, err)
			}
			assertPerm(t, p, n)
		}
	}
}

func TestShuffleKeepsInputIntact(t *testing.T) {
	c := testCore(2)
	items := []string{"A", "B", "C", "D", "E"}
	orig := []string{"A", "B", "C", "D", "E"}

	for i := 0; i < 30; i++ {
		out, err := Shuffle(items, 3, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j := range orig {
			if items[j] != orig[j] {
				t.Fatalf("input was modified: %v", items)
			}
		}
		// 輸出必須是輸入的重排
		cnt := map[string]int{}
		for _, s := range out {
			cnt[s]++
		}
		for _, s := range orig {
			if cnt[s] != 1 {
				t.Fatalf("output is not a permutation of input: %v", out)
			}
		}
	}
}

// TestShuffleUniformAtZero 冪次 0 時每個項目落在每個位置的頻率應接近 1/n。
func TestShuffleUniformAtZero(t *testing.T) {
	const (
		n      = 5
		trials = 6000
		tol    = 0.03
	)
	c := testCore(3)

	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}
	for i := 0; i < trials; i++ {
		p, err := ShufflePerm(n, 0, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for pos, orig := range p {
			counts[orig][pos]++
		}
	}

	want := 1.0 / n
	for orig := range counts {
		for pos, cnt := range counts[orig] {
			got := float64(cnt) / trials
			if math.Abs(got-want) > tol {
				t.Fatalf("item %d at pos %d: freq %.4f want %.4f±%.2f", orig, pos, got, want, tol)
			}
		}
	}
}

// TestShuffleRankMonotonic 冪次 > 0 時，名次越前的項目搶下首位的頻率必須遞減。
func TestShuffleRankMonotonic(t *testing.T) {
	const (
		n      = 6
		trials = 6000
	)
	c := testCore(4)

	first := make([]int, n)
	for i := 0; i < trials; i++ {
		p, err := ShufflePerm(n, 2, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first[p[0]]++
	}

	for i := 1; i < n; i++ {
		if first[i] >= first[i-1] {
			t.Fatalf("first-place counts not decreasing: %v", first)
		}
	}
}

// TestShuffleInequalityMonotonic 冪次越大，首位留在首位的頻率越高。
// 每組都用相同 seed 重跑，讓比較不受亂數流水影響。
func TestShuffleInequalityMonotonic(t *testing.T) {
	const (
		n      = 8
		trials = 4000
	)

	stayFreq := func(q float64) float64 {
		c := testCore(99)
		stay := 0
		for i := 0; i < trials; i++ {
			p, err := ShufflePerm(n, q, c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p[0] == 0 {
				stay++
			}
		}
		return float64(stay) / trials
	}

	low := stayFreq(0.5)
	mid := stayFreq(2)
	high := stayFreq(8)
	if !(low < mid && mid < high) {
		t.Fatalf("stay-at-top freq not increasing: %.4f %.4f %.4f", low, mid, high)
	}
}

func TestShuffleDeterministicWithSeed(t *testing.T) {
	const (
		n = 20
		q = 1.0
	)
	c1 := testCore(1234)
	c2 := testCore(1234)

	for round := 0; round < 5; round++ {
		p1, err1 := ShufflePerm(n, q, c1)
		p2, err2 := ShufflePerm(n, q, c2)
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected error: %v %v", err1, err2)
		}
		for i := range p1 {
			if p1[i] != p2[i] {
				t.Fatalf("round %d: same seed diverged: %v vs %v", round, p1, p2)
			}
		}
	}

	c3 := testCore(4321)
	p1, _ := ShufflePerm(n, q, testCore(1234))
	p3, _ := ShufflePerm(n, q, c3)
	same := true
	for i := range p1 {
		if p1[i] != p3[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical permutation")
	}
}

// TestShuffleScenarioFiveItems 5 個項目在冪次 10 下的頭部行為。
// 權重 ≈ [1, 0.107, 0.006, 1e-4, 1e-7]，首抽取 A 的理論機率 ≈ 0.898，
// E 搶下首位的理論機率 < 1e-7。
func TestShuffleScenarioFiveItems(t *testing.T) {
	const (
		n      = 5
		q      = 10.0
		trials = 5000
	)
	c := testCore(5)

	first := make([]int, n)
	for i := 0; i < trials; i++ {
		p, err := ShufflePerm(n, q, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first[p[0]]++
	}

	freqA := float64(first[0]) / trials
	freqE := float64(first[n-1]) / trials
	if freqA < 0.85 {
		t.Fatalf("top item keeps first place too rarely: %.4f", freqA)
	}
	if freqE >= 0.01 {
		t.Fatalf("bottom item takes first place too often: %.4f", freqE)
	}
	for i := 1; i < n; i++ {
		if first[i] > first[0] {
			t.Fatalf("top item is not the most frequent leader: %v", first)
		}
	}
}

// TestShuffleRacePathPairwiseOrder 長清單走 exponential race 路徑。
// 在 Plackett-Luce 模型下 P(i 排在 j 前) = w[i]/(w[i]+w[j])，
// 首項對末項的權重比極大，幾乎每次都應排在前面。
func TestShuffleRacePathPairwiseOrder(t *testing.T) {
	const (
		n      = 600
		q      = 1.5
		trials = 200
	)
	if n < AutoRaceThreshold {
		t.Fatalf("n must reach the race threshold")
	}
	c := testCore(6)

	ahead := 0
	for i := 0; i < trials; i++ {
		p, err := ShufflePerm(n, q, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertPerm(t, p, n)

		posTop, posBottom := -1, -1
		for pos, orig := range p {
			if orig == 0 {
				posTop = pos
			}
			if orig == n-1 {
				posBottom = pos
			}
		}
		if posTop < posBottom {
			ahead++
		}
	}
	if ahead < trials*95/100 {
		t.Fatalf("top item rarely ahead of bottom item: %d/%d", ahead, trials)
	}
}

// ----- 邊界與錯誤 -----

func TestShuffleDegenerate(t *testing.T) {
	c := testCore(7)

	p, err := ShufflePerm(0, 5, c)
	if err != nil || len(p) != 0 {
		t.Fatalf("empty input: perm=%v err=%v", p, err)
	}

	out, err := Shuffle([]int{}, 3, c)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty input: out=%v err=%v", out, err)
	}

	for _, q := range []float64{0, 1, 10} {
		single, err := Shuffle([]string{"x"}, q, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(single) != 1 || single[0] != "x" {
			t.Fatalf("single item q=%v: %v", q, single)
		}
	}
}

func TestShuffleInvalidInequality(t *testing.T) {
	c := testCore(8)
	items := []int{1, 2, 3}

	for _, q := range []float64{-1, -0.001, math.NaN(), math.Inf(1), math.Inf(-1)} {
		out, err := Shuffle(items, q, c)
		if err == nil {
			t.Fatalf("q=%v: expected error", q)
		}
		if !errs.IsLevel(err, errs.Warn) {
			t.Fatalf("q=%v: expected warn level, got %v", q, err)
		}
		if out != nil {
			t.Fatalf("q=%v: expected no output, got %v", q, out)
		}
	}
}

func TestShufflePermNegativeN(t *testing.T) {
	if _, err := ShufflePerm(-1, 1, testCore(9)); err == nil {
		t.Fatalf("expected error for negative n")
	}
}

func TestShuffleDefaultSource(t *testing.T) {
	// c 為 nil 時走套件預設亂數來源
	seen := false
	for i := 0; i < 10; i++ {
		p, err := ShufflePerm(30, 0.5, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertPerm(t, p, 30)
		for pos, orig := range p {
			if pos != orig {
				seen = true
				break
			}
		}
	}
	if !seen {
		t.Fatalf("ten draws all returned the identity permutation")
	}
}

// ----- 引擎 -----

func TestEngineGetResult(t *testing.T) {
	fp := testProfile(t)
	e, err := NewEngine(fp, BuiltinRegistry(), testCore(11), false)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	sr := e.GetResult(&buf.ShuffleRequest{N: 6})
	assertPerm(t, sr.Perm, 6)
	if sr.Inequality != 2 {
		t.Fatalf("profile inequality not applied: %v", sr.Inequality)
	}
	if sr.Strategy != profile.StrategyScan {
		t.Fatalf("expected scan for short list, got %v", sr.Strategy)
	}
	if len(sr.Weights) != 6 || sr.Weights[0] != 1 {
		t.Fatalf("with_weights output missing: %v", sr.Weights)
	}
	if sr.FeedName != "demo_feed" || sr.PID != 7 {
		t.Fatalf("result metadata mismatch: %+v", sr)
	}
}

func TestEngineUniformFastPath(t *testing.T) {
	fp := testProfile(t)
	e, err := NewEngine(fp, BuiltinRegistry(), testCore(12), false)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	sr := e.GetResult(&buf.ShuffleRequest{N: 6, Inequality: 0, HasInequality: true})
	if sr.Strategy != profile.StrategyUniform {
		t.Fatalf("expected uniform fast path, got %v", sr.Strategy)
	}
	assertPerm(t, sr.Perm, 6)
	for _, w := range sr.Weights {
		if w != 1 {
			t.Fatalf("uniform path weights must be 1: %v", sr.Weights)
		}
	}
}

func TestEngineEmptyRequest(t *testing.T) {
	fp := testProfile(t)
	e, err := NewEngine(fp, BuiltinRegistry(), testCore(13), false)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	sr := e.GetResult(&buf.ShuffleRequest{N: 0})
	if len(sr.Perm) != 0 || sr.N != 0 {
		t.Fatalf("empty request must yield empty result: %+v", sr)
	}
}

func TestEngineResultBufferReuse(t *testing.T) {
	fp := testProfile(t)
	e, err := NewEngine(fp, BuiltinRegistry(), testCore(14), false)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	sr1 := e.GetResult(&buf.ShuffleRequest{N: 6})
	p1 := &sr1.Perm[0]
	sr2 := e.GetResult(&buf.ShuffleRequest{N: 6})
	if sr1 != sr2 {
		t.Fatalf("engine must reuse its result buffer")
	}
	if p1 != &sr2.Perm[0] {
		t.Fatalf("perm backing array was reallocated")
	}
}

func TestEngineDeterministic(t *testing.T) {
	fp := testProfile(t)
	e1, _ := NewEngine(fp, BuiltinRegistry(), testCore(77), false)
	e2, _ := NewEngine(fp, BuiltinRegistry(), testCore(77), false)

	for round := 0; round < 3; round++ {
		sr1 := e1.GetResult(&buf.ShuffleRequest{N: 6})
		sr2 := e2.GetResult(&buf.ShuffleRequest{N: 6})
		for i := range sr1.Perm {
			if sr1.Perm[i] != sr2.Perm[i] {
				t.Fatalf("round %d: engines with same seed diverged", round)
			}
		}
	}
}

func TestEngineStrategyOverride(t *testing.T) {
	raceYAML := `
feed_name: race_feed
feed_id: 8
transform: elitist
inequality: 1
item_setting:
  count: 6
sampler_setting:
  strategy: race
`
	fp, err := profile.GetFeedProfileByYAML([]byte(raceYAML))
	if err != nil {
		t.Fatalf("profile init failed: %v", err)
	}
	e, err := NewEngine(fp, BuiltinRegistry(), testCore(15), false)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	sr := e.GetResult(&buf.ShuffleRequest{N: 6})
	if sr.Strategy != profile.StrategyRace {
		t.Fatalf("strategy override ignored: %v", sr.Strategy)
	}
	assertPerm(t, sr.Perm, 6)
}

// ----- 註冊表 -----

// testBoostTransform 測試用轉換: 全部等權但首位加倍。
type testBoostTransform struct{}

func (testBoostTransform) Weights(dst []float64, n int, inequality float64) []float64 {
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = 1
	}
	dst[0] = 2
	return dst
}

func TestTransformRegistry(t *testing.T) {
	reg := NewTransformRegistry()
	builder := func(e *Engine) (Transform, error) { return testBoostTransform{}, nil }

	if err := TransformRegister[*buf.NoExtend]("test_boost", builder, reg); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !reg.IsExist("test_boost") {
		t.Fatalf("registered key not found")
	}
	if err := reg.Register("test_boost", builder); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := reg.Build("missing", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestMergeTransformRegistry(t *testing.T) {
	builder := func(e *Engine) (Transform, error) { return testBoostTransform{}, nil }

	a := NewTransformRegistry()
	if err := a.Register("alpha", builder); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	b := NewTransformRegistry()
	if err := b.Register("beta", builder); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	merged, err := MergeTransformRegistry(a, b, nil)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !merged.IsExist("alpha") || !merged.IsExist("beta") {
		t.Fatalf("merged registry lost keys")
	}

	dup := NewTransformRegistry()
	if err := dup.Register("alpha", builder); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := MergeTransformRegistry(a, dup); err == nil {
		t.Fatalf("expected duplicate key error on merge")
	}
}

func TestBuiltinRegistry(t *testing.T) {
	reg := BuiltinRegistry()
	if !reg.IsExist(TransformElitist) {
		t.Fatalf("builtin registry misses the elitist transform")
	}
}

func TestEngineCustomTransform(t *testing.T) {
	customYAML := `
feed_name: custom_feed
feed_id: 9
transform: test_custom
inequality: 1
item_setting:
  count: 4
sampler_setting:
  strategy: scan
`
	fp, err := profile.GetFeedProfileByYAML([]byte(customYAML))
	if err != nil {
		t.Fatalf("profile init failed: %v", err)
	}

	reg := NewTransformRegistry()
	err = TransformRegister[*buf.NoExtend]("test_custom", func(e *Engine) (Transform, error) {
		return testBoostTransform{}, nil
	}, reg)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	e, err := NewEngine(fp, reg, testCore(16), false)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}
	sr := e.GetResult(&buf.ShuffleRequest{N: 4})
	assertPerm(t, sr.Perm, 4)
}
