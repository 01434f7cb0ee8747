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

package tuner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

const tuneFeedYAML = `
feed_name: feed_tune
feed_id: 9
transform: elitist
inequality: 1
item_setting:
  count: 6
sim_setting:
  trials: 1000
  top_k: 3
tune_setting:
  top_rate: 0.5
  tolerance: 0.02
  max_iter: 40
`

func testLab(t *testing.T) *shufflelab.ShuffleLab {
	t.Helper()
	cfg := fstest.MapFS{
		"feed_tune.yaml": &fstest.MapFile{Data: []byte(tuneFeedYAML)},
	}
	lab, err := shufflelab.NewAuto(core.Default(), shufflelab.Configs(cfg), shufflelab.Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("build lab: %v", err)
	}
	return lab
}

func TestTunerSettingYAML(t *testing.T) {
	good := []byte("ns: [4, 8, 16]\ntrials: 500\ntop_rate: 0.9\ntolerance: 0.05\nmax_iter: 10\nout_dir: out\n")
	ts, err := getTunerSettingByYaml(good)
	if err != nil {
		t.Fatalf("parse good setting: %v", err)
	}
	if len(ts.Ns) != 3 || ts.Ns[2] != 16 {
		t.Fatalf("ns mismatch: %v", ts.Ns)
	}
	if ts.trials() != 500 {
		t.Fatalf("trials mismatch: %d", ts.trials())
	}
	if ts.OutDir != "out" {
		t.Fatalf("out_dir mismatch: %q", ts.OutDir)
	}

	empty := &TunerSetting{}
	if empty.trials() != defaultTrials {
		t.Fatalf("default trials mismatch: %d", empty.trials())
	}

	bad := []struct {
		name string
		raw  string
	}{
		{"empty ns", "trials: 10\n"},
		{"zero n", "ns: [0, 4]\n"},
		{"not increasing", "ns: [4, 4]\n"},
		{"decreasing", "ns: [8, 4]\n"},
		{"top_rate one", "ns: [4]\ntop_rate: 1.0\n"},
		{"negative tolerance", "ns: [4]\ntolerance: -0.1\n"},
		{"negative trials", "ns: [4]\ntrials: -1\n"},
		{"negative max_iter", "ns: [4]\nmax_iter: -1\n"},
	}
	for _, c := range bad {
		if _, err := getTunerSettingByYaml([]byte(c.raw)); !errs.IsLevel(err, errs.Warn) {
			t.Fatalf("%s must warn, got %v", c.name, err)
		}
	}
}

func TestGateWiden(t *testing.T) {
	g := newGate(0.01)
	if !g.pass(0.505, 0.5) {
		t.Fatal("inside tolerance must pass")
	}
	if g.pass(0.52, 0.5) {
		t.Fatal("outside tolerance must fail")
	}
	if g.fail != 1 {
		t.Fatalf("fail counter mismatch: %d", g.fail)
	}

	// mercy 次未中後開始放寬
	g2 := newGate(0.01)
	for i := 0; i < mercy; i++ {
		if g2.pass(0.6, 0.5) {
			t.Fatalf("miss %d must fail", i)
		}
	}
	if g2.tol <= 0.01 {
		t.Fatalf("tolerance must widen after %d misses: %f", mercy, g2.tol)
	}
	if !g2.pass(0.514, 0.5) {
		t.Fatalf("widened tolerance must cover 0.014: tol=%f", g2.tol)
	}
	if g2.fail != 0 {
		t.Fatalf("pass must reset fail counter: %d", g2.fail)
	}
	// 放寬後的容差沿用
	if g2.tol <= 0.01 {
		t.Fatalf("widened tolerance must stick: %f", g2.tol)
	}
}

func TestMeasureBracket(t *testing.T) {
	lab := testLab(t)
	m, err := lab.NewShufflerWithSeed(9, 42, true)
	if err != nil {
		t.Fatalf("new shuffler: %v", err)
	}
	tr := &Tuner{cfg: &TunerSetting{}, metric: topStay}
	tg := &target{n: 6, m: m}

	s0 := tr.measure(tg, 0, 3000)
	if s0 < 0.12 || s0 > 0.22 {
		t.Fatalf("uniform stay must be near 1/6: %f", s0)
	}
	s8 := tr.measure(tg, 8, 3000)
	if s8 < 0.6 {
		t.Fatalf("high inequality stay must be high: %f", s8)
	}
	if s0 >= s8 {
		t.Fatalf("stay must grow with inequality: %f >= %f", s0, s8)
	}
	if tg.got.Load() != 2 {
		t.Fatalf("probe counter mismatch: %d", tg.got.Load())
	}

	lo, sLo, hi, sHi, err := tr.bracket(tg, 0.5, 3000)
	if err != nil {
		t.Fatalf("bracket: %v", err)
	}
	if !(lo < hi) || hi > maxInequality {
		t.Fatalf("bracket bounds invalid: [%f, %f]", lo, hi)
	}
	if !(sLo < 0.5 && sHi >= 0.5) {
		t.Fatalf("bracket must straddle target: sLo=%f sHi=%f", sLo, sHi)
	}

	// 均勻已達標：包夾退化成底線
	_, fLo, fHi, _, err := tr.bracket(tg, 0.1, 3000)
	if err != nil {
		t.Fatalf("floor bracket: %v", err)
	}
	if fHi != 0 || fLo < 0.1 {
		t.Fatalf("floor case mismatch: sLo=%f hi=%f", fLo, fHi)
	}
}

func TestFit(t *testing.T) {
	lab := testLab(t)
	m, err := lab.NewShufflerWithSeed(9, 1234, true)
	if err != nil {
		t.Fatalf("new shuffler: %v", err)
	}
	tr := &Tuner{cfg: &TunerSetting{}, metric: topStay}

	// 目標低於均勻停留率：結果是底線 0
	floor := &target{n: 6, m: m}
	if err := tr.fit(floor, 0.1, 3000, 40, newGate(0.02)); err != nil {
		t.Fatalf("floor fit: %v", err)
	}
	if !floor.isOK || floor.value != 0 {
		t.Fatalf("floor fit mismatch: ok=%v value=%f", floor.isOK, floor.value)
	}

	// 一般收斂
	tg := &target{n: 6, m: m}
	if err := tr.fit(tg, 0.5, 3000, 40, newGate(0.02)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if !tg.isOK {
		t.Fatal("fit must converge")
	}
	if tg.value <= 0 || tg.value > 16 {
		t.Fatalf("tuned inequality out of expected range: %f", tg.value)
	}
	if d := tg.stay - 0.5; d < -0.1 || d > 0.1 {
		t.Fatalf("converged stay too far from target: %f", tg.stay)
	}
}

func TestRunSave(t *testing.T) {
	lab := testLab(t)
	dir := t.TempDir()
	plan := fmt.Sprintf("ns: [4, 6]\ntrials: 3000\nout_dir: %q\n", dir)
	planFS := fstest.MapFS{
		"plan.yaml": &fstest.MapFile{Data: []byte(plan)},
	}

	if _, err := New(planFS, "missing.yaml"); err == nil {
		t.Fatal("missing plan must fail")
	}

	tn, err := New(planFS, "plan.yaml")
	if err != nil {
		t.Fatalf("new tuner: %v", err)
	}
	if err := tn.Run(77, lab, 7); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("unknown fid must warn, got %v", err)
	}

	tn2, err := New(planFS, "plan.yaml")
	if err != nil {
		t.Fatalf("new tuner: %v", err)
	}
	if err := tn2.Run(9, lab, 7); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "tuned_9.json.zst"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	jsonBytes, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		t.Fatalf("decompress artifact: %v", err)
	}
	var table shufflelab.TunedTable
	if err := json.Unmarshal(jsonBytes, &table); err != nil {
		t.Fatalf("unmarshal artifact: %v", err)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("artifact must satisfy loader rules: %v", err)
	}
	if table.Transform != "elitist" {
		t.Fatalf("transform mismatch: %s", table.Transform)
	}
	if table.TopRate != 0.5 {
		t.Fatalf("top_rate mismatch: %f", table.TopRate)
	}
	if len(table.Ns) != 2 || table.Ns[0] != 4 || table.Ns[1] != 6 {
		t.Fatalf("ns mismatch: %v", table.Ns)
	}
	for i, v := range table.Values {
		if v <= 0 {
			t.Fatalf("values[%d] must be positive for top_rate above uniform: %f", i, v)
		}
	}

	// round trip：產出的 artifact 直接掛回 Shuffler
	useYAML := `
feed_name: feed_tune
feed_id: 9
transform: elitist
inequality: 1
item_setting:
  count: 6
tune_setting:
  use_tuned: true
  artifacts:
    - tuned_9.json.zst
  top_rate: 0.5
`
	cfg := fstest.MapFS{
		"feed_tune.yaml": &fstest.MapFile{Data: []byte(useYAML)},
	}
	lab2, err := shufflelab.New(core.Default(), shufflelab.Configs(cfg), shufflelab.Transforms(elitist.BuiltinRegistry()))
	if err != nil {
		t.Fatalf("build lab2: %v", err)
	}
	lab2.UseTunedFS(os.DirFS(dir))
	if err := lab2.RegisterAll(); err != nil {
		t.Fatalf("register lab2: %v", err)
	}
	lab2.Freeze()
	m, err := lab2.NewShufflerWithSeed(9, 5, true)
	if err != nil {
		t.Fatalf("new tuned shuffler: %v", err)
	}
	if got := m.ResolveInequality(6); got != table.Values[1] {
		t.Fatalf("resolve(6) mismatch: %f != %f", got, table.Values[1])
	}
	if got := m.ResolveInequality(4); got != table.Values[0] {
		t.Fatalf("resolve(4) mismatch: %f != %f", got, table.Values[0])
	}
}

func TestSaveValidation(t *testing.T) {
	tr := &Tuner{cfg: &TunerSetting{OutDir: t.TempDir()}, metric: topStay}
	if err := tr.Save(1, nil); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("nil table must warn, got %v", err)
	}
	broken := &shufflelab.TunedTable{Transform: "elitist", TopRate: 0.5}
	if err := tr.Save(1, broken); !errs.IsLevel(err, errs.Warn) {
		t.Fatalf("empty ns must warn, got %v", err)
	}
	ok := &shufflelab.TunedTable{Transform: "elitist", TopRate: 0.5, Ns: []int{4}, Values: []float64{1.5}}
	if err := tr.Save(1, ok); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tr.cfg.OutDir, "tuned_1.json.zst")); err != nil {
		t.Fatalf("artifact must exist: %v", err)
	}
}
