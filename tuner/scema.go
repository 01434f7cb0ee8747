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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"gopkg.in/yaml.v3"
)

const defaultTrials int = 20_000
const defaultTolerance float64 = 0.01
const defaultMaxIter int = 48
const mercy int = 8
const widenStep float64 = 0.005
const maxInequality float64 = 512

// Tuner 調校器主體
//
// 針對單一 feed、在一組清單長度（ns）上，各自尋找讓「命中率」落到目標
// top_rate 的 inequality，最後輸出 Shuffler 可直接掛載的 .json.zst artifact。
//
// 注意：本調校器以「位置 0 停留率」作為預設指標（可用 RegisterMetric 換掉）。
type Tuner struct {
	cfg     *TunerSetting
	targets []*target
	metric  func(*buf.ShuffleResult) bool
}

func New(cfg fs.FS, name string) (*Tuner, error) {
	raw, err := fs.ReadFile(cfg, name)
	if err != nil {
		return nil, err
	}
	ts, err := getTunerSettingByYaml(raw)
	if err != nil {
		return nil, err
	}
	t := &Tuner{
		cfg:     ts,
		targets: make([]*target, 0, len(ts.Ns)),
		metric:  topStay,
	}
	for _, n := range ts.Ns {
		t.targets = append(t.targets, &target{n: n})
	}
	fmt.Printf("tune plan: ns=%v trials=%d\n", ts.Ns, ts.trials())
	return t, nil
}

// RegisterMetric 替換「單次洗牌是否命中」的判定。
// 換成其他保留性指標（例如前三名仍含原冠軍）時，artifact 的 top_rate 語意跟著換。
func (t *Tuner) RegisterMetric(fn func(*buf.ShuffleResult) bool) {
	t.metric = fn
}

// topStay 預設指標：原位置 0 的項目洗牌後仍在位置 0。
func topStay(sr *buf.ShuffleResult) bool {
	return len(sr.Perm) > 0 && sr.Perm[0] == 0
}

type progressPrinter struct {
	stop   chan struct{}
	done   chan struct{}
	ticker *time.Ticker

	targets []*target
	// remaining = 尚未收斂的 target 數（用 atomic 讓未來併發也能直接用）
	remaining *atomic.Int64

	lastLen int
}

func startProgressPrinter(targets []*target, remaining *atomic.Int64) *progressPrinter {
	p := &progressPrinter{
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		ticker:    time.NewTicker(1 * time.Second),
		targets:   targets,
		remaining: remaining,
	}

	printLine := func(final bool) {
		var b strings.Builder
		for i, tg := range p.targets {
			if i > 0 {
				b.WriteString("  ")
			}
			// 只讀 atomic 計數，收斂狀態由 remaining 呈現
			fmt.Fprintf(&b, "n=%d: %d", tg.n, tg.got.Load())
		}
		fmt.Fprintf(&b, "  | remaining: %d", p.remaining.Load())

		s := b.String()
		pad := ""
		if p.lastLen > len(s) {
			pad = strings.Repeat(" ", p.lastLen-len(s))
		}
		fmt.Printf("\r%s%s", s, pad)
		p.lastLen = len(s)

		if final {
			fmt.Print("\n")
		}
	}

	// 先印一次
	printLine(false)

	go func() {
		defer close(p.done)
		defer p.ticker.Stop()

		for {
			select {
			case <-p.stop:
				printLine(true) // 收尾再印一次 + 換行
				return
			case <-p.ticker.C:
				printLine(false)
			}
		}
	}()

	return p
}

func (p *progressPrinter) Stop() {
	close(p.stop)
	<-p.done
}

func (t *Tuner) Run(fid profile.PID, lab *shufflelab.ShuffleLab, seed int64) error {
	seeds := shufflelab.NewSeedMaker(seed)
	// 執行調校
	// 1. resolve
	fmt.Println("step1: resolve feed")
	fp, err := lab.FeedProfileById(fid)
	if err != nil {
		return err
	}
	top := t.cfg.topRate(fp)
	if top <= 0 {
		return errs.Warnf("top_rate required: set it in tuner setting or feed tune_setting")
	}
	tol := t.cfg.tolerance(fp)
	maxIter := t.cfg.maxIter(fp)
	trials := t.cfg.trials()
	fmt.Printf("feed %s: transform=%s top_rate=%.4f tolerance=%.4f trials=%d\n",
		fp.FeedName, fp.Transform, top, tol, trials)
	for _, tg := range t.targets {
		m, err := lab.NewShufflerWithSeed(fid, seeds.Next(), true)
		if err != nil {
			return err
		}
		tg.m = m
	}
	// 2. fit per n
	fmt.Println("step2: fit")
	if err := t.fitAll(top, tol, trials, maxIter); err != nil {
		return err
	}
	for _, tg := range t.targets {
		fmt.Printf("n=%d: inequality=%.4f stay=%.4f\n", tg.n, tg.value, tg.stay)
	}
	// 3. assemble
	fmt.Println("step3: assemble")
	table := t.assemble(fp.Transform, top)
	if err := table.Validate(); err != nil {
		return errs.Wrap(err, "assemble: invalid tuned table")
	}
	// 單調性只提示不擋存檔：理論上 n 越大需要越大的 inequality，
	// 量測噪聲可能產生小幅倒置。
	for i := 1; i < len(table.Values); i++ {
		if table.Values[i] < table.Values[i-1] {
			fmt.Printf("warn: values not monotone at ns[%d] (n=%d: %.4f < %.4f)\n",
				i, table.Ns[i], table.Values[i], table.Values[i-1])
		}
	}
	// 4. save
	fmt.Println("step4: save tuned artifact")
	if err := t.Save(fid, table); err != nil {
		return err
	}
	fmt.Println("finish tuning")
	return nil
}

// fitAll 逐一收斂各 target。
//
// Progress printer (dev-friendly): prints "n=?: probes" every second on the same line.
// This is intentionally self-contained inside fitAll(), so callers don't need extra goroutines/wg.
func (t *Tuner) fitAll(top, tol float64, trials, maxIter int) error {
	var remaining atomic.Int64
	remaining.Store(int64(len(t.targets)))

	pp := startProgressPrinter(t.targets, &remaining)
	defer pp.Stop()

	for _, tg := range t.targets {
		g := newGate(tol)
		if err := t.fit(tg, top, trials, maxIter, g); err != nil {
			return err
		}
		remaining.Add(-1)
	}
	return nil
}

// assemble 把各 target 的結果組成 TunedTable（ns 沿用設定順序，已驗證遞增）。
func (t *Tuner) assemble(key profile.TransformKey, top float64) *shufflelab.TunedTable {
	table := &shufflelab.TunedTable{
		Transform: key,
		TopRate:   top,
		Ns:        make([]int, len(t.targets)),
		Values:    make([]float64, len(t.targets)),
	}
	for i, tg := range t.targets {
		table.Ns[i] = tg.n
		table.Values[i] = tg.value
	}
	return table
}

func (t *Tuner) Save(fid profile.PID, table *shufflelab.TunedTable) error {
	if table == nil {
		return errs.Warnf("save: tuned table is nil")
	}
	if err := table.Validate(); err != nil {
		return errs.Wrap(err, "save: invalid tuned table")
	}

	// Output directory (dev-friendly default): ./build/tuner
	outDir := t.cfg.OutDir
	if outDir == "" {
		outDir = filepath.Join("build", "tuner")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errs.Wrap(err, "save: mkdir output dir")
	}

	// 1) Save tuned table as JSON then zstd-compress into tuned_<fid>.json.zst
	jsonBytes, err := json.Marshal(table)
	if err != nil {
		return errs.Wrap(err, "save: marshal tuned table json")
	}
	path := filepath.Join(outDir, fmt.Sprintf("tuned_%d.json.zst", fid))
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "save: create tuned.json.zst")
	}
	defer func() { _ = f.Close() }()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return errs.Wrap(err, "save: create zstd writer")
	}
	if _, err := zw.Write(jsonBytes); err != nil {
		_ = zw.Close()
		return errs.Wrap(err, "save: write tuned.json.zst")
	}
	if err := zw.Close(); err != nil {
		return errs.Wrap(err, "save: close zstd writer")
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, "save: close tuned.json.zst")
	}

	// 2) Optional: quick sanity check that the artifact can be read back (in-memory)
	// This is dev-only correctness guard; cheap for typical sizes.
	zr, err := zstd.NewReader(bytes.NewReader(mustReadFile(path)))
	if err != nil {
		return errs.Wrap(err, "save: verify zstd reader")
	}
	zr.Close()

	return nil
}

func mustReadFile(path string) []byte {
	b, _ := os.ReadFile(path)
	return b
}

// ----------------------------

// TunerSetting 調校計畫：要掃的清單長度、每次量測的模擬量與收斂參數。
// top_rate / tolerance / max_iter 為 0 時回退到 feed 的 tune_setting。
type TunerSetting struct {
	// 要調校的清單長度（遞增）
	Ns []int `yaml:"ns"`
	// 每次量測的模擬次數；0 用預設
	Trials int `yaml:"trials"`
	// 目標命中率；0 用 feed tune_setting.top_rate
	TopRate float64 `yaml:"top_rate"`
	// 允許誤差；0 用 feed tune_setting.tolerance，再不然用預設
	Tolerance float64 `yaml:"tolerance"`
	// 每個 n 的最大收斂次數；0 用 feed tune_setting.max_iter，再不然用預設
	MaxIter int `yaml:"max_iter"`
	// 輸出目錄；空字串用 build/tuner
	OutDir string `yaml:"out_dir"`
}

func getTunerSettingByYaml(data []byte) (*TunerSetting, error) {
	ts := &TunerSetting{}
	if err := yaml.Unmarshal(data, ts); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	if err := ts.validate(); err != nil {
		return nil, err
	}

	return ts, nil
}

// validate 檢查調校計畫是否合理。
// ns 的遞增規則與 artifact 載入端一致，這裡先擋掉省得白跑。
func (s *TunerSetting) validate() error {
	if len(s.Ns) == 0 {
		return errs.NewWarn("tuner: ns is required")
	}
	for i, n := range s.Ns {
		if n < 1 {
			return errs.Warnf("tuner: ns[%d] must be >= 1", i)
		}
		if i > 0 && n <= s.Ns[i-1] {
			return errs.Warnf("tuner: ns must be strictly increasing")
		}
	}
	if s.Trials < 0 {
		return errs.Warnf("tuner: trials must be non-negative")
	}
	if s.TopRate < 0 || s.TopRate >= 1 {
		return errs.Warnf("tuner: top_rate must be inside [0, 1)")
	}
	if s.Tolerance < 0 {
		return errs.Warnf("tuner: tolerance must be non-negative")
	}
	if s.MaxIter < 0 {
		return errs.Warnf("tuner: max_iter must be non-negative")
	}
	return nil
}

func (s *TunerSetting) topRate(fp *profile.FeedProfile) float64 {
	if s.TopRate > 0 {
		return s.TopRate
	}
	return fp.Tune.TopRate
}

func (s *TunerSetting) tolerance(fp *profile.FeedProfile) float64 {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	if fp.Tune.Tolerance > 0 {
		return fp.Tune.Tolerance
	}
	return defaultTolerance
}

func (s *TunerSetting) maxIter(fp *profile.FeedProfile) int {
	if s.MaxIter > 0 {
		return s.MaxIter
	}
	if fp.Tune.MaxIter > 0 {
		return fp.Tune.MaxIter
	}
	return defaultMaxIter
}

func (s *TunerSetting) trials() int {
	if s.Trials > 0 {
		return s.Trials
	}
	return defaultTrials
}
