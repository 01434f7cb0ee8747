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

// Package shufflelab 提供 ShuffleLab 引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 ShuffleLab 視為一個「可被後端/模擬器使用的 runtime」，它負責把下列三個必需的地基組裝在一起，並提供建立 Shuffler 的入口：
//  1. Catalog：清單目錄（Single Source of Truth / SSOT），定義有哪些 feed、各自對應的設定檔名稱（ConfigName）。
//  2. TransformRegistry：轉換註冊表，提供「如何依據設定（TransformKey）建出權重轉換」的 builders。
//  3. PRNGFactory：亂數核心工廠（PRNG factory），保證可重現（reproducible）與可審計（auditable）。
//
// 設計重點：
//   - ShuffleLab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
//   - ShuffleLab 會持有一份 Catalog（你要跑哪一批 feed/設定檔）與一份 TransformRegistry（你支援哪些權重轉換）。
//   - Shuffler 是對外提供 Shuffle 的最小單位；轉換開發者（數據科學家）主要操作的是 sdk 內的型別與資料結構。
//
// 典型使用情境：
//   - 後端服務（HTTP）：由 ShuffleLab 建立 Shuffler，Shuffler 對外提供 Shuffle。
//   - 模擬器（sim）：由 ShuffleLab 建立多台 Shuffler 進行大量模擬。
//
// 注意：此套引擎目前以 ranked-list 領域為中心（Shuffle -> 排列結果），不是泛用推薦框架。
package shufflelab

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/shufflelab/catalog"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 configs 直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
//   - 甚至可以用自製的 MultiFS 來合併多個來源。
//
// ShuffleLab 不解析「路徑」：它只依賴 fs.FS + ConfigName（檔名）來取得設定內容。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Transforms 用來把一或多個轉換註冊表（TransformRegistry）打包成 New() 需要的參數。
//
// 一個 TransformRegistry 代表「一個轉換模組」提供的 builders 集合。
// 例如：
//   - sdk/elitist 的 BuiltinRegistry 提供內建 elitist 轉換
//   - demo_transform 模組提供 boltzmann / floor 的 builders
//
// New() 會把多個 registries 合併成單一 registry；若出現重複 TransformKey，會以 error 直接失敗（避免行為不確定）。
func Transforms(regs ...*elitist.TransformRegistry) []*elitist.TransformRegistry {
	return regs
}

// ShuffleLab 是「組裝器（assembler）」與「運行入口（runtime entry）」：
//
// 它把三個必需的地基組合起來：
//  1. Catalog：清單目錄（Single Source of Truth / SSOT），定義有哪些 feed、各自對應的設定檔名稱。
//  2. TransformRegistry：轉換註冊表，提供「如何依據設定（TransformKey）建出權重轉換」的 builders。
//  3. PRNGFactory：亂數核心工廠（PRNG factory），保證可重現（reproducible）與可審計（auditable）。
//
// ShuffleLab 本身不綁定任何「檔案路徑」概念：設定檔來源一律由 fs.FS 提供。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog、合併 registries、檢查重複與缺漏。
//   - 執行階段（runtime）：依據 feed ID 產生 Shuffler，並在 Shuffler 上執行 Shuffle。
//
// 重要設計原則：
//   - Catalog 的 ID 唯一性只保證在「同一個 ShuffleLab instance」內（不同 ShuffleLab 之間不做全域保證）。
//   - 你要跑哪一批 feed、哪一套設定檔、哪一批轉換，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已建立 Shuffler 並對外服務），不建議再變更 Catalog/Registry（避免非預期行為）。
//
// 實務例子（概念示意，細節依你的實作為準）：
//
//	// 1) 準備 configs（通常是 go:embed 或 DirFS）
//	// 2) 準備一或多個轉換模組的 TransformRegistry
//	// 3) 組裝 ShuffleLab，取得可建立 Shuffler 的入口
//	//	lab, _ := shufflelab.New(cf, shufflelab.Configs(cfgFS), shufflelab.Transforms(reg1, reg2))
//	//	m, _ := lab.NewShuffler(1001, false)
//	//	// m.Shuffle(...) -> 取得結果（通常再轉成 DTO 回傳）
type ShuffleLab struct {
	cat   *catalog.Catalog
	reg   *elitist.TransformRegistry
	cf    core.PRNGFactory
	tuned fs.FS
	sum   []catalog.Summary
}

// New 建立一個 ShuffleLab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（通常同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會合併多個 TransformRegistry 成為單一 registry（重複 TransformKey 直接視為錯誤）。
//   - 會保存 PRNGFactory，確保由這個 ShuffleLab 建出來的 Shuffler 在 RNG 行為上具有一致性。
//
// 參數要求（是合約的一部分）：
//   - cf 不能為 nil：沒有 RNG 工廠就無法建立可重現/可審計的核心。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析 FeedProfile。
//   - trans 至少一個：沒有轉換 builders，就算解析出設定也無法建出可執行的洗牌引擎。
//
// 回傳的 ShuffleLab 會持有：cat（目錄）、reg（合併後 registry）、cf（RNG 工廠）。
func New(cf core.PRNGFactory, cfgs []fs.FS, trans []*elitist.TransformRegistry) (*ShuffleLab, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	if len(trans) == 0 {
		return nil, errs.NewFatal("transform registry required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	reg, err := elitist.MergeTransformRegistry(trans...)
	if err != nil {
		return nil, err
	}
	lab := &ShuffleLab{
		cat: cata,
		reg: reg,
		cf:  cf,
	}
	return lab, nil
}

// NewAuto 建立一個直接進入執行階段的 ShuffleLab instance。
//
// 回傳的 ShuffleLab 會持有：cat（目錄）、reg（合併後 registry）、cf（RNG 工廠）。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS, trans []*elitist.TransformRegistry) (*ShuffleLab, error) {
	lab, err := New(cf, cfgs, trans)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

// UseTunedFS 指定 tuned artifacts 的來源。
//
// 只有 tune_setting.use_tuned = true 的 feed 會在建立 Shuffler 時載入 artifacts；
// 未指定來源時跳過載入，該 feed 以設定檔的 inequality 運作。
// 請在建立任何 Shuffler/Simulator 之前呼叫。
func (p *ShuffleLab) UseTunedFS(tfs fs.FS) {
	p.tuned = tfs
}

func (p *ShuffleLab) Register(ents ...catalog.Entry) error {
	return p.cat.Register(ents...)
}

// RegisterAll
//
// 會掃描 catalog 持有的設定檔來源（fs.FS），把所有可辨識的設定檔（.yaml/.yml/.json）嘗試解析成
// *profile.FeedProfile，並用設定檔內宣告的 FeedID/FeedName 產生對應的 catalog.Entry 來批次註冊。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析/基本檢查失敗，都會立刻回傳 error（不會忽略、也不會繼續掃完）。
//  2. 原子性：只有當「全部檔案」都成功解析並通過基本檢查時，才會呼叫 Register(...) 一次性寫入。
//     因此不會出現只註冊了一半、導致 catalog 處於半完成狀態的情況。
//  3. 穩定性：會依檔名排序後再處理，確保行為 determinism（方便重現與除錯）。
//
// 注意：
//   - RegisterAll 只負責「把設定檔宣告的 feed 資訊放進 Catalog」。
//
// 權重轉換（TransformBuilder / TransformRegistry）是否支援該 TransformKey，屬於後續 ShuffleLab 組裝/建 Shuffler 時的責任。
func (p *ShuffleLab) RegisterAll() error {
	cfgs := p.cat.Cfg()
	sources := cfgs.Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 64)
	seenID := map[profile.PID]string{}
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}

			base := filepath.Base(path)
			if strings.Contains(path, "/") && path != base {
				return errs.NewFatal(fmt.Sprintf("configs must be flat (nested path): %q", path))
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(base))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.NewFatal(fmt.Sprintf("read config failed: %s", base))
			}

			var (
				fp   *profile.FeedProfile
				ferr error
			)
			switch ext {
			case ".yaml", ".yml":
				fp, ferr = profile.GetFeedProfileByYAML(raw)
			case ".json":
				fp, ferr = profile.GetFeedProfileByJSON(raw)
			default:
				return errs.NewFatal(fmt.Sprintf("unsupported config format: %q", base))
			}
			if ferr != nil {
				return errs.NewFatal(fmt.Sprintf("parse feed profile failed: %s", base))
			}

			name := strings.TrimSpace(fp.FeedName)
			if name == "" {
				return errs.NewFatal(fmt.Sprintf("feed name required: %s", base))
			}

			id := fp.FeedID
			if prev, ok := seenID[id]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate feed id: %d (config=%s and %s)", id, prev, base))
			}
			if _, ok := p.cat.GetByID(id); ok {
				return errs.NewFatal(fmt.Sprintf("feed id already registered: %d (config=%s)", id, base))
			}
			seenID[id] = base

			nameKey := strings.ToLower(name)
			if prev, ok := seenName[nameKey]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate feed name: %s (config=%s and %s)", nameKey, prev, base))
			}
			if _, ok := p.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("feed name already registered: %s (config=%s)", name, base))
			}
			seenName[nameKey] = base

			if fp.Transform == "" {
				return errs.NewFatal(fmt.Sprintf("transform required: %s", base))
			}
			if !p.reg.IsExist(fp.Transform) {
				return errs.NewFatal(fmt.Sprintf("transform not registered: transform=%s (config=%s)", fp.Transform, base))
			}

			entries = append(entries, catalog.Entry{
				FID:        id,
				Name:       name,
				ConfigName: base,
			})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	return p.cat.Register(entries...)
}

func (p *ShuffleLab) Freeze() {
	p.cat.Freeze()
}

func (p *ShuffleLab) EntryById(id profile.PID) (catalog.Entry, bool) {
	return p.cat.GetByID(id)
}

func (p *ShuffleLab) EntryByName(name string) (catalog.Entry, bool) {
	return p.cat.GetByName(name)
}

func (p *ShuffleLab) IDs() []profile.PID {
	return p.cat.IDs()
}

func (p *ShuffleLab) All() []catalog.Entry {
	return p.cat.All()
}

func (p *ShuffleLab) Summary() ([]catalog.Summary, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if p.sum != nil {
		return p.sum, nil
	}
	ids := p.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		fp, err := p.cat.FeedProfileById(id)
		if err != nil {
			return nil, errs.NewFatal("parse feed profile failed")
		}
		s := catalog.Summary{
			FID:        id,
			Name:       fp.FeedName,
			Transform:  fp.Transform,
			Inequality: fp.Inequality,
			Count:      fp.Items.Count,
		}
		cs = append(cs, s)
	}
	p.sum = cs
	return p.sum, nil
}

// FeedProfileById 取得完整的 FeedProfile（轉接 Catalog）。
//
// Summary 只帶摘要欄位；需要 tune_setting 等完整設定時（例如 tuner）走這裡。
func (p *ShuffleLab) FeedProfileById(id profile.PID) (*profile.FeedProfile, error) {
	return p.cat.FeedProfileById(id)
}

// NewShuffler 依據 Catalog 內的 feed ID 建立一台 Shuffler。
//
// 行為：
//  1. 由 Catalog 取得對應的 FeedProfile（通常來自 fs.FS 內的 YAML/JSON）。
//  2. 以 PRNGFactory 產生 RNG 核心（seed 由 crypto/rand 產生）。
//  3. 透過 TransformRegistry 依據 FeedProfile 內的 TransformKey 建出可執行的權重轉換。
//
// isSim 用於區分「模擬/分析」與「對外服務」的執行模式（例如：某些 extend 深拷貝行為可能只在 prod 開啟以增加 sim 的性能）。
//
// 注意：seed 會被記錄在 Shuffler 內（initseed），用於追溯/重現；真正的可審計能力以 Core 的 Snapshot/Restore 合約為準。
func (p *ShuffleLab) NewShuffler(id profile.PID, isSim bool) (*Shuffler, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	fp, err := p.cat.FeedProfileById(id)
	if err != nil {
		return nil, err
	}
	return newShuffler(fp, p.reg, p.cf, isSim, p.tuned)
}

// NewShufflerWithSeed 與 NewShuffler 相同，但由呼叫端指定初始 seed。
//
// 使用情境：
//   - 可重現的測試：同一份設定 + 同一個 seed，應產生一致的隨機序列（取決於 Core 實作）。
//
// 注意：seed 只是「出生入口」。若要在任意時間點完整重現，請使用 Core 的 Snapshot/Restore（以 []byte 交換狀態）。
func (p *ShuffleLab) NewShufflerWithSeed(id profile.PID, seed int64, isSim bool) (*Shuffler, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	fp, err := p.cat.FeedProfileById(id)
	if err != nil {
		return nil, err
	}
	return newShufflerWithSeed(fp, p.reg, p.cf, seed, isSim, p.tuned)
}

func (p *ShuffleLab) NewShufflerByJSON(raw []byte, seed int64) (*Shuffler, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := profile.GetFeedProfileByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newShufflerWithSeed(cfg, p.reg, p.cf, seed, true, p.tuned)
}

func (p *ShuffleLab) NewShufflerByYAML(raw []byte, seed int64) (*Shuffler, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := profile.GetFeedProfileByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newShufflerWithSeed(cfg, p.reg, p.cf, seed, true, p.tuned)
}

func (p *ShuffleLab) validCfg(cfg *profile.FeedProfile) error {
	ent, ok := p.cat.GetByID(cfg.FeedID)
	if !ok {
		return errs.NewWarn("fid not exist")
	}
	ent2, ok := p.cat.GetByName(cfg.FeedName)
	if !ok {
		return errs.NewWarn("feed name not exist")
	}
	if ent.FID != ent2.FID {
		return errs.NewWarn("feed id is not matched feed name")
	}
	if !p.reg.IsExist(cfg.Transform) {
		return errs.NewWarn("transform not exist")
	}
	return nil
}

func (p *ShuffleLab) NewSimulator(id profile.PID) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	fp, err := p.cat.FeedProfileById(id)
	if err != nil {
		return nil, err
	}
	return newSimulator(fp, p.reg, p.cf, p.tuned)
}

func (p *ShuffleLab) NewSimulatorWithSeed(id profile.PID, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	fp, err := p.cat.FeedProfileById(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(fp, p.reg, p.cf, seed, p.tuned)
}

func (p *ShuffleLab) NewSimulatorByJSON(raw []byte, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := profile.GetFeedProfileByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(cfg, p.reg, p.cf, seed, p.tuned)
}

func (p *ShuffleLab) NewSimulatorByYAML(raw []byte, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := profile.GetFeedProfileByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(cfg, p.reg, p.cf, seed, p.tuned)
}

func (p *ShuffleLab) BuildRuntime(poolSize int) (*ShuffleRuntime, error) {
	// 1. 進入 runtime 前，catalog 必須 Freeze
	p.Freeze()

	ids := p.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no feeds registered")
	}

	rt := &ShuffleRuntime{
		lab:      p,
		pools:    make(map[profile.PID]*ShufflerPool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	// 2. 先全建好（fail-fast + cleanup）
	for _, id := range ids {
		fp, err := p.cat.FeedProfileById(id)
		if err != nil {
			return nil, err
		}

		seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		mp, err := newShufflerPool(rt.poolSize, fp, p.reg, p.cf, seed.Int64(), p.tuned)
		if err != nil {
			return nil, err
		}
		rt.pools[id] = mp
	}
	return rt, nil
}

// NewDevSimulator
//
// 注意只能由ShuffleLab起
// 只提供給Dev模式使用的模擬器，重點是保持單一 Shuffler 所以保持可重現性
func (p *ShuffleLab) NewDevSimulator(fid profile.PID, seed int64) (*DevSimulator, error) {
	sim, err := p.NewSimulatorWithSeed(fid, seed)
	if err != nil {
		return nil, err
	}
	m, err := p.NewShufflerWithSeed(fid, seed, false)
	if err != nil {
		return nil, err
	}
	simBe, err := sim.mBuf[0].SnapshotCore()
	if err != nil {
		return nil, err
	}
	mBe, err := m.SnapshotCore()
	if err != nil {
		return nil, err
	}
	simBe64 := base64.StdEncoding.EncodeToString(simBe)
	mBe64 := base64.StdEncoding.EncodeToString(mBe)
	if mBe64 != simBe64 {
		return nil, errs.NewFatal("seeds are not equal")
	}
	dev := &DevSimulator{
		sim:      sim,
		m:        m,
		before:   mBe,
		before64: mBe64,
	}
	return dev, nil
}
