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

package shufflelab

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

const feedAYAML = `feed_name: feed_a
feed_id: 1
transform: elitist
inequality: 2
item_setting:
  count: 6
  labels: [hero, second, third, fourth, fifth, tail]
sim_setting:
  trials: 2000
  top_k: 3
`

const feedBYAML = `feed_name: feed_b
feed_id: 2
transform: elitist
inequality: 0
item_setting:
  count: 4
sim_setting:
  trials: 1000
  top_k: 2
`

// 與 feed_a 撞 feed_id，用於重複註冊測試
const feedDupYAML = `feed_name: feed_x
feed_id: 1
transform: elitist
inequality: 1
item_setting:
  count: 3
`

const feedTunedYAML = `feed_name: feed_t
feed_id: 7
transform: elitist
inequality: 1
item_setting:
  count: 6
tune_setting:
  use_tuned: true
  artifacts: [feed_t_tuned.json.zst]
  top_rate: 0.8
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"feed_a.yaml":  &fstest.MapFile{Data: []byte(feedAYAML)},
		"feed_b.yaml":  &fstest.MapFile{Data: []byte(feedBYAML)},
		"notes.txt":    &fstest.MapFile{Data: []byte("not a config")},
		".hidden.yaml": &fstest.MapFile{Data: []byte("ignored: true")},
	}
}

func testLab(t *testing.T) *ShuffleLab {
	t.Helper()
	lab, err := NewAuto(core.Default(), Configs(testFS()), Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	return lab
}

func tunedArtifact(t *testing.T, table TunedTable) []byte {
	t.Helper()
	raw, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("marshal tuned table failed: %v", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("new zstd writer failed: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil)
}

func assertPerm(t *testing.T, perm []int, n int) {
	t.Helper()
	if len(perm) != n {
		t.Fatalf("perm length = %d, want %d", len(perm), n)
	}
	seen := make([]bool, n)
	for _, v := range perm {
		if v < 0 || v >= n || seen[v] {
			t.Fatalf("perm is not a valid permutation: %v", perm)
		}
		seen[v] = true
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLabNew(t *testing.T) {
	cfg := testFS()
	reg := elitist.BuiltinRegistry()

	if _, err := New(nil, Configs(cfg), Transforms(reg)); !errs.IsLevel(err, errs.Fatal) {
		t.Fatalf("nil factory must be fatal, got %v", err)
	}
	if _, err := New(core.Default(), nil, Transforms(reg)); !errs.IsLevel(err, errs.Fatal) {
		t.Fatalf("missing configs must be fatal, got %v", err)
	}
	if _, err := New(core.Default(), Configs(cfg), nil); !errs.IsLevel(err, errs.Fatal) {
		t.Fatalf("missing registries must be fatal, got %v", err)
	}
	if _, err := NewAuto(core.Default(), Configs(fstest.MapFS{}), Transforms(reg)); err == nil {
		t.Fatal("empty config fs must fail")
	}
}

func TestLabRegisterAll(t *testing.T) {
	lab := testLab(t)

	ids := lab.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	ent, ok := lab.EntryById(1)
	if !ok || ent.Name != "feed_a" || ent.ConfigName != "feed_a.yaml" {
		t.Fatalf("unexpected entry: %+v ok=%v", ent, ok)
	}
	if _, ok := lab.EntryByName("FEED_A"); !ok {
		t.Fatal("name lookup should be case-insensitive")
	}

	sum, err := lab.Summary()
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(sum) != 2 {
		t.Fatalf("summary length = %d, want 2", len(sum))
	}
	if sum[0].FID != 1 || sum[0].Count != 6 || sum[0].Inequality != 2 {
		t.Fatalf("unexpected summary[0]: %+v", sum[0])
	}
	if sum[1].FID != 2 || sum[1].Count != 4 || sum[1].Inequality != 0 {
		t.Fatalf("unexpected summary[1]: %+v", sum[1])
	}

	// 未 Freeze 前不可建 Shuffler、不可取 Summary
	raw, err := New(core.Default(), Configs(testFS()), Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	if err := raw.RegisterAll(); err != nil {
		t.Fatalf("register all failed: %v", err)
	}
	if _, err := raw.NewShuffler(1, false); !errs.IsLevel(err, errs.Fatal) {
		t.Fatalf("unfrozen NewShuffler must be fatal, got %v", err)
	}
	if _, err := raw.Summary(); !errs.IsLevel(err, errs.Fatal) {
		t.Fatalf("unfrozen Summary must be fatal, got %v", err)
	}

	// 重複 feed_id 直接失敗
	dup := fstest.MapFS{
		"feed_a.yaml": &fstest.MapFile{Data: []byte(feedAYAML)},
		"feed_x.yaml": &fstest.MapFile{Data: []byte(feedDupYAML)},
	}
	if _, err := NewAuto(core.Default(), Configs(dup), Transforms(elitist.BuiltinRegistry())); err == nil {
		t.Fatal("duplicate feed id must fail")
	}
}

func TestShufflerReplayDeterminism(t *testing.T) {
	lab := testLab(t)
	m, err := lab.NewShuffler(1, false)
	if err != nil {
		t.Fatalf("new shuffler failed: %v", err)
	}

	res1, err := m.Shuffle(&dto.ShuffleRequest{UID: "u1", FeedName: "feed_a", FeedID: 1})
	if err != nil {
		t.Fatalf("shuffle failed: %v", err)
	}
	if res1.N != 6 {
		t.Fatalf("n should default to item count, got %d", res1.N)
	}
	if res1.Inequality != 2 {
		t.Fatalf("inequality should default to profile value, got %v", res1.Inequality)
	}
	assertPerm(t, res1.Perm, 6)
	if res1.State.StartCoreSnapB64U == "" || res1.State.AfterCoreSnapB64U == "" {
		t.Fatal("state snapshots must be returned")
	}

	// 帶 start_b64u 重放，結果必須完全一致
	res2, err := m.Shuffle(&dto.ShuffleRequest{
		UID:       "u1",
		FeedName:  "feed_a",
		FeedID:    1,
		StartB64U: res1.State.StartCoreSnapB64U,
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !equalInts(res1.Perm, res2.Perm) {
		t.Fatalf("replay perm mismatch: %v vs %v", res1.Perm, res2.Perm)
	}
	if res2.State.StartCoreSnapB64U != res1.State.StartCoreSnapB64U {
		t.Fatal("replay must echo the provided start snapshot")
	}
	if res2.State.AfterCoreSnapB64U != res1.State.AfterCoreSnapB64U {
		t.Fatal("replay must land on the same after snapshot")
	}
}

func TestShufflerSeedDeterminism(t *testing.T) {
	lab := testLab(t)
	m1, err := lab.NewShufflerWithSeed(1, 42, false)
	if err != nil {
		t.Fatalf("new shuffler failed: %v", err)
	}
	m2, err := lab.NewShufflerWithSeed(1, 42, false)
	if err != nil {
		t.Fatalf("new shuffler failed: %v", err)
	}

	req := &dto.ShuffleRequest{UID: "u1", FeedName: "feed_a", FeedID: 1}
	for round := 0; round < 3; round++ {
		r1, err := m1.Shuffle(req)
		if err != nil {
			t.Fatalf("round %d shuffle failed: %v", round, err)
		}
		r2, err := m2.Shuffle(req)
		if err != nil {
			t.Fatalf("round %d shuffle failed: %v", round, err)
		}
		if !equalInts(r1.Perm, r2.Perm) {
			t.Fatalf("round %d perm mismatch: %v vs %v", round, r1.Perm, r2.Perm)
		}
	}
}

func TestShufflerValid(t *testing.T) {
	lab := testLab(t)
	m, err := lab.NewShuffler(1, false)
	if err != nil {
		t.Fatalf("new shuffler failed: %v", err)
	}

	cases := []struct {
		name string
		req  *dto.ShuffleRequest
	}{
		{"wrong fid", &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 2}},
		{"wrong name", &dto.ShuffleRequest{UID: "u", FeedName: "feed_b", FeedID: 1}},
		{"inequality without flag", &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1, Inequality: 1.5}},
		{"negative inequality", &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1, Inequality: -1, HasInequality: true}},
		{"nan inequality", &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1, Inequality: math.NaN(), HasInequality: true}},
		{"negative n", &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1, N: -3}},
		{"oversized n", &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1, N: maxRequestN + 1}},
	}
	for _, tc := range cases {
		if _, err := m.Shuffle(tc.req); !errs.IsLevel(err, errs.Warn) {
			t.Fatalf("%s: expected warn, got %v", tc.name, err)
		}
	}

	// 拒絕請求後 Shuffler 仍然可用
	if _, err := m.Shuffle(&dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1}); err != nil {
		t.Fatalf("shuffler should stay healthy after warns: %v", err)
	}
}

func TestShufflerTuned(t *testing.T) {
	cfg := fstest.MapFS{
		"feed_t.yaml": &fstest.MapFile{Data: []byte(feedTunedYAML)},
	}
	art := tunedArtifact(t, TunedTable{
		Transform: elitist.TransformElitist,
		TopRate:   0.8,
		Ns:        []int{4, 6},
		Values:    []float64{3.5, 5.25},
	})
	tfs := fstest.MapFS{
		"feed_t_tuned.json.zst": &fstest.MapFile{Data: art},
	}

	lab, err := NewAuto(core.Default(), Configs(cfg), Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	lab.UseTunedFS(tfs)

	m, err := lab.NewShuffler(7, true)
	if err != nil {
		t.Fatalf("new shuffler failed: %v", err)
	}

	resolveCases := []struct {
		n    int
		want float64
	}{
		{6, 5.25},
		{4, 3.5},
		{5, 3.5}, // 距離相同取較小的 n
		{1, 3.5},
		{100, 5.25},
	}
	for _, tc := range resolveCases {
		if got := m.ResolveInequality(tc.n); got != tc.want {
			t.Fatalf("ResolveInequality(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}

	sr := m.ShuffleInternal()
	if sr.Inequality != 5.25 {
		t.Fatalf("internal shuffle should use tuned value, got %v", sr.Inequality)
	}

	// 請求未帶 inequality 走 tuned；帶了則以請求為準
	res, err := m.Shuffle(&dto.ShuffleRequest{UID: "u", FeedName: "feed_t", FeedID: 7})
	if err != nil {
		t.Fatalf("shuffle failed: %v", err)
	}
	if res.Inequality != 5.25 {
		t.Fatalf("tuned inequality not applied, got %v", res.Inequality)
	}
	res, err = m.Shuffle(&dto.ShuffleRequest{UID: "u", FeedName: "feed_t", FeedID: 7, Inequality: 1.5, HasInequality: true})
	if err != nil {
		t.Fatalf("shuffle failed: %v", err)
	}
	if res.Inequality != 1.5 {
		t.Fatalf("request inequality must win, got %v", res.Inequality)
	}

	// 轉換不相符的 artifact 必須擋在建 Shuffler 階段
	badArt := tunedArtifact(t, TunedTable{
		Transform: "boltzmann",
		TopRate:   0.8,
		Ns:        []int{4},
		Values:    []float64{2},
	})
	labBad, err := NewAuto(core.Default(), Configs(cfg), Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	labBad.UseTunedFS(fstest.MapFS{
		"feed_t_tuned.json.zst": &fstest.MapFile{Data: badArt},
	})
	if _, err := labBad.NewShuffler(7, true); err == nil {
		t.Fatal("transform mismatch must fail")
	}

	// 未指定 tunedFS 時照設定檔跑
	labOff, err := NewAuto(core.Default(), Configs(cfg), Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("new lab failed: %v", err)
	}
	mOff, err := labOff.NewShuffler(7, true)
	if err != nil {
		t.Fatalf("new shuffler failed: %v", err)
	}
	if got := mOff.ResolveInequality(6); got != 1 {
		t.Fatalf("without tunedFS profile value should apply, got %v", got)
	}
}

func TestSimulatorSim(t *testing.T) {
	lab := testLab(t)
	sim, err := lab.NewSimulatorWithSeed(1, 7)
	if err != nil {
		t.Fatalf("new simulator failed: %v", err)
	}

	rep, _, err := sim.Sim(200, false)
	if err != nil {
		t.Fatalf("sim failed: %v", err)
	}
	if rep.Summary.Trials != 200 || rep.Summary.N != 6 || rep.Summary.Inequality != 2 {
		t.Fatalf("unexpected summary: %+v", rep.Summary)
	}
	if rep.Summary.TopStayRate < 0 || rep.Summary.TopStayRate > 1 {
		t.Fatalf("top stay rate out of range: %v", rep.Summary.TopStayRate)
	}

	rep, _, err = sim.SimMP(100, 4, false)
	if err != nil {
		t.Fatalf("simmp failed: %v", err)
	}
	if rep.Summary.Trials != 400 {
		t.Fatalf("simmp trials = %d, want 400", rep.Summary.Trials)
	}

	st, est, _, err := sim.SimSeeds(2, 5, 50, false)
	if err != nil {
		t.Fatalf("simseeds failed: %v", err)
	}
	if st.Summary.Trials != 250 {
		t.Fatalf("simseeds trials = %d, want 250", st.Summary.Trials)
	}
	if est.Streams != 5 {
		t.Fatalf("simseeds streams = %d, want 5", est.Streams)
	}

	// inequality = 0 時報表帶首位落點均勻性檢定
	rep, _, err = sim.SimAt(4, 0, 300, false)
	if err != nil {
		t.Fatalf("simat failed: %v", err)
	}
	if rep.Summary.N != 4 || rep.Summary.Inequality != 0 {
		t.Fatalf("unexpected summary: %+v", rep.Summary)
	}
	if rep.Summary.UniformPValue <= 0 || rep.Summary.UniformPValue > 1 {
		t.Fatalf("uniform p-value out of range: %v", rep.Summary.UniformPValue)
	}

	if _, _, err := sim.Sim(0, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("zero trials must warn, got %v", err)
	}
	if _, _, err := sim.SimMPAt(0, 2, 10, 2, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("zero n must warn, got %v", err)
	}
	if _, _, err := sim.SimAt(6, -0.5, 10, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("negative inequality must warn, got %v", err)
	}
	if _, _, _, err := sim.SimSeeds(0, 5, 50, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("zero workers must warn, got %v", err)
	}
}

func TestSimMix(t *testing.T) {
	lab := testLab(t)

	reports, _, err := lab.SimMix([]MixEntry{
		{FID: 1, Weight: 3},
		{FID: 2, Weight: 1},
	}, 400, false)
	if err != nil {
		t.Fatalf("simmix failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("report count = %d, want 2", len(reports))
	}
	total := reports[0].Summary.Trials + reports[1].Summary.Trials
	if total != 400 {
		t.Fatalf("total trials = %d, want 400", total)
	}
	// 3:1 權重，期望值 300；容忍大幅抽樣波動
	if reports[0].Summary.Trials < 240 || reports[0].Summary.Trials > 350 {
		t.Fatalf("weighted split looks wrong: %d/%d", reports[0].Summary.Trials, reports[1].Summary.Trials)
	}

	reports, _, err = lab.SimMix([]MixEntry{
		{FID: 1, Weight: 1},
		{FID: 2, Weight: 0},
	}, 50, false)
	if err != nil {
		t.Fatalf("simmix failed: %v", err)
	}
	if reports[1].Summary.Trials != 0 {
		t.Fatalf("zero-weight feed must not be picked, got %d", reports[1].Summary.Trials)
	}

	if _, _, err := lab.SimMix(nil, 10, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("empty entries must warn, got %v", err)
	}
	if _, _, err := lab.SimMix([]MixEntry{{FID: 1, Weight: 0}}, 10, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("all-zero weights must warn, got %v", err)
	}
	if _, _, err := lab.SimMix([]MixEntry{{FID: 1, Weight: -1}}, 10, false); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("negative weight must warn, got %v", err)
	}
	if _, _, err := lab.SimMix([]MixEntry{{FID: 99, Weight: 1}}, 10, false); err == nil {
		t.Fatal("unknown fid must fail")
	}
}

func TestRuntimePool(t *testing.T) {
	lab := testLab(t)
	rt, err := lab.BuildRuntime(2)
	if err != nil {
		t.Fatalf("build runtime failed: %v", err)
	}

	res, err := rt.Shuffle(context.Background(), &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1})
	if err != nil {
		t.Fatalf("runtime shuffle failed: %v", err)
	}
	if res.N != 6 {
		t.Fatalf("unexpected n: %d", res.N)
	}

	if _, err := rt.Shuffle(context.Background(), &dto.ShuffleRequest{UID: "u", FeedName: "ghost", FeedID: 99}); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("unknown fid must warn, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Shuffle(ctx, &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1}); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("canceled ctx must warn, got %v", err)
	}

	// 併發壓一輪，全部成功且無重建/panic
	var wg sync.WaitGroup
	errCh := make(chan error, 200)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				req := &dto.ShuffleRequest{UID: "load", FeedName: "feed_a", FeedID: 1}
				if (g+i)%2 == 1 {
					req.FeedName, req.FeedID = "feed_b", 2
				}
				if _, err := rt.Shuffle(context.Background(), req); err != nil {
					errCh <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent shuffle failed: %v", err)
	}

	ms := rt.Metrics()
	if len(ms) != 2 {
		t.Fatalf("metrics count = %d, want 2", len(ms))
	}
	for _, m := range ms {
		if m.PoolSize != 2 {
			t.Fatalf("pool size = %d, want 2", m.PoolSize)
		}
		if m.Available != 2 {
			t.Fatalf("available = %d, want 2", m.Available)
		}
		if m.Rebuild != 0 || m.Panics != 0 || m.Fatals != 0 {
			t.Fatalf("healthy pool reported failures: %+v", m)
		}
		if m.Closed {
			t.Fatalf("pool should be open: %+v", m)
		}
	}

	rt.Close()
	if !rt.Closed() {
		t.Fatal("runtime should report closed")
	}
	if rt.ClosedReason() != "closed" {
		t.Fatalf("unexpected close reason: %q", rt.ClosedReason())
	}
	if _, err := rt.Shuffle(context.Background(), &dto.ShuffleRequest{UID: "u", FeedName: "feed_a", FeedID: 1}); !errs.IsLevel(err, errs.Fatal) {
		t.Fatalf("closed runtime must be fatal, got %v", err)
	}
}

func TestDevSimulator(t *testing.T) {
	lab := testLab(t)
	dev, err := lab.NewDevSimulator(1, 1234)
	if err != nil {
		t.Fatalf("new dev simulator failed: %v", err)
	}

	r1, err := dev.Shuffles(6, 0, false, 5)
	if err != nil {
		t.Fatalf("shuffles failed: %v", err)
	}
	if r1.Round != 5 || len(r1.Results) != 5 {
		t.Fatalf("unexpected report: round=%d results=%d", r1.Round, len(r1.Results))
	}
	if r1.Before == "" || r1.After == "" {
		t.Fatal("report must carry snapshots")
	}
	if r1.TopStayRate < 0 || r1.TopStayRate > 1 {
		t.Fatalf("top stay rate out of range: %v", r1.TopStayRate)
	}
	for _, r := range r1.Results {
		if r.Inequality != 2 {
			t.Fatalf("profile inequality should apply, got %v", r.Inequality)
		}
		assertPerm(t, r.Perm, 6)
	}

	r2, err := dev.RestoreShuffles(r1.Before, 6, 0, false, 5)
	if err != nil {
		t.Fatalf("restore shuffles failed: %v", err)
	}
	for i := range r1.Results {
		if !equalInts(r1.Results[i].Perm, r2.Results[i].Perm) {
			t.Fatalf("restored round %d mismatch: %v vs %v", i, r1.Results[i].Perm, r2.Results[i].Perm)
		}
	}

	s1, err := dev.Sim(0, 0, false, 1000)
	if err != nil {
		t.Fatalf("dev sim failed: %v", err)
	}
	if s1.Stat.Summary.Trials != 1000 || s1.Stat.Summary.N != 6 {
		t.Fatalf("unexpected sim summary: %+v", s1.Stat.Summary)
	}
	if s1.Before == "" || s1.After == "" || s1.Before == s1.After {
		t.Fatal("sim must advance the core between snapshots")
	}

	s2, err := dev.RestoreSim(s1.Before, 0, 0, false, 1000)
	if err != nil {
		t.Fatalf("restore sim failed: %v", err)
	}
	if s2.Stat.Summary.TopStay != s1.Stat.Summary.TopStay {
		t.Fatalf("restored top stay mismatch: %d vs %d", s2.Stat.Summary.TopStay, s1.Stat.Summary.TopStay)
	}
	if s2.Stat.Summary.MeanShift != s1.Stat.Summary.MeanShift {
		t.Fatalf("restored mean shift mismatch: %v vs %v", s2.Stat.Summary.MeanShift, s1.Stat.Summary.MeanShift)
	}
	if s2.After != s1.After {
		t.Fatal("restored sim must land on the same after snapshot")
	}

	if _, err := dev.Shuffles(6, 0, false, 0); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("round lower bound must warn, got %v", err)
	}
	if _, err := dev.Shuffles(6, 0, false, 5001); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("round upper bound must warn, got %v", err)
	}
	if _, err := dev.Sim(0, 0, false, 0); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("trials lower bound must warn, got %v", err)
	}
}

func TestSeedMaker(t *testing.T) {
	sm := NewSeedMaker(99)
	seen := make(map[int64]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		v := sm.Next()
		if v < 0 {
			t.Fatalf("seed must be non-negative, got %d", v)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("seed repeated at round %d: %d", i, v)
		}
		seen[v] = struct{}{}
	}

	sm2 := NewSeedMaker(7)
	var mu sync.Mutex
	got := make(map[int64]struct{}, 8000)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, 1000)
			for i := 0; i < 1000; i++ {
				local = append(local, sm2.Next())
			}
			mu.Lock()
			for _, v := range local {
				got[v] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(got) != 8000 {
		t.Fatalf("concurrent seeds must be unique: got %d of 8000", len(got))
	}
}
