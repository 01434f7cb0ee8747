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
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/big"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

// Shuffler 封裝一個「可對外提供 Shuffle」的洗牌實例。
//
// 你可以把 Shuffler 視為 Engine 的「外殼（shell）」：
//   - 對外：提供 Shuffle 入口（HTTP/模擬器通常只操作 Shuffler）。
//   - 對內：持有 RNG（Core）與真正執行洗牌邏輯的核心（sdk/elitist.Engine）。
//
// 並發語意：
//   - Shuffler 預設不是 lock-free 結構；它內含可重用的 request/result buffer（熱路徑），因此同一個 Shuffler 不應被多 goroutine 同時 Shuffle。
//   - 若要併發模擬，由更高層建立多個 Shuffler 分散到不同 worker 並管理其生命週期。
//
// Buffer 語意（非常重要，影響 DX 與正確性）：
//   - ShuffleRequest / ShuffleResult 會被重用（避免 GC），每次 Shuffle 會覆寫內容。
//   - 你若需要在 Shuffle 後保留結果，請在離開臨界區前轉成 DTO（或自行 copy 你需要的欄位）。
//
// TunedTable 表示調校後的 inequality 對照表（對應 tuner 產出的 .json.zst artifact）。
// tuner 以此結構寫出 artifact；Shuffler 建台時讀回、驗證並合併成 TunedRuntime。
type TunedTable struct {
	Transform profile.TransformKey `json:"transform"` // 產出此表所用的權重轉換
	TopRate   float64              `json:"top_rate"`  // 調校目標：位置 0 的停留率
	Ns        []int                `json:"ns"`        // 清單長度（遞增）
	Values    []float64            `json:"values"`    // 對應每個 n 的 tuned inequality
}

// Validate 檢查 TunedTable 是否合法。
// tuner 存檔與 Shuffler 載入共用同一套規則。
func (t TunedTable) Validate() error {
	if len(t.Ns) == 0 {
		return errs.Warnf("tuned table: ns is required")
	}
	if len(t.Ns) != len(t.Values) {
		return errs.Warnf("tuned table: ns and values length mismatch")
	}
	for i, n := range t.Ns {
		if n < 1 {
			return errs.Warnf("tuned table: ns[%d] must be >= 1", i)
		}
		if i > 0 && n <= t.Ns[i-1] {
			return errs.Warnf("tuned table: ns must be strictly increasing")
		}
		if err := elitist.CheckInequality(t.Values[i]); err != nil {
			return errs.Wrap(err, fmt.Sprintf("tuned table: values[%d] invalid", i))
		}
	}
	return nil
}

// TunedRuntime 存儲合併後的調校數據（所有 artifacts 攤平後依 n 遞增排序）。
// 一個 feed 可以掛多個 artifacts，載入時合併成單一對照表。
type TunedRuntime struct {
	Ns     []int
	Values []float64
}

// Resolve 依清單長度取出 tuned inequality。
// 沒有完全相符的 n 時取最接近者；距離相同時取較小的 n。
func (t *TunedRuntime) Resolve(n int) (float64, bool) {
	if t == nil || len(t.Ns) == 0 {
		return 0, false
	}
	i := sort.SearchInts(t.Ns, n)
	if i < len(t.Ns) && t.Ns[i] == n {
		return t.Values[i], true
	}
	if i == 0 {
		return t.Values[0], true
	}
	if i == len(t.Ns) {
		return t.Values[len(t.Ns)-1], true
	}
	lo, hi := t.Ns[i-1], t.Ns[i]
	if n-lo <= hi-n {
		return t.Values[i-1], true
	}
	return t.Values[i], true
}

// initseed 用於記錄出生時的 seed（追溯/重現的基礎資訊）；完整審計仍以 Core 的 Snapshot/Restore 為準。
type Shuffler struct {
	feedName       string              // Feed 名稱（來自 FeedProfile.FeedName，主要用於觀測/日誌）
	feedId         profile.PID         // Feed ID（Catalog 內唯一；用於路由與查表）
	core           *core.Core          // RNG 核心（PRNG + Snapshot/Restore 合約；熱路徑會頻繁取樣）
	eng            *elitist.Engine     // 洗牌執行核心（權重轉換 + 抽樣入口；由 TransformRegistry + FeedProfile 組裝）
	ItemCount      int                 // 清單長度（由 feed 設定衍生；n 未指定時的預設值）
	ShuffleRequest *buf.ShuffleRequest // 可重用的請求 buffer（每次 Shuffle 會覆寫/填充）
	ShuffleResult  *buf.ShuffleResult  // 可重用的結果 buffer（熱路徑；每次 Shuffle 會覆寫）
	mu             sync.Mutex          // 防併發鎖：保護可重用 buffers 與核心狀態一致性
	initseed       int64               // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
	tuned          *TunedRuntime       // 調校運行時數據（nil 表示未啟用 tuned）
}

// newShuffler 以「隨機 seed」建立 Shuffler。
//
// 這裡使用 crypto/rand 產生 seed 是為了：
//   - 在對外服務情境避免可預測 RNG
//   - 同時保留可追溯性（seed 會被記錄在 Shuffler.initseed）
//
// seed 只保證了新建的Shuffler起點，如果需要在任意局後將Shuffler"重設"到任意Core節點，請利用Snapshot Restore來操作
func newShuffler(fp *profile.FeedProfile, reg *elitist.TransformRegistry, cf core.PRNGFactory, isSim bool, tunedFS fs.FS) (*Shuffler, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newShufflerWithSeed(fp, reg, cf, seed.Int64(), isSim, tunedFS)
}

// newShufflerWithSeed 以指定 seed 建立 Shuffler。
//
// 這是最常用的「可重現」入口：同一份 FeedProfile + 同一個 seed，應能得到一致的隨機序列（取決於 Core 實作）。
//
// 建立流程（概念）：
//  1. core.New(cf.New(seed)) 建出 RNG 核心
//  2. elitist.NewEngine(fp, reg, core, isSim) 依設定 + registry 建出洗牌執行核心
//  3. 初始化 Shuffler 需要的 buffers（ShuffleRequest/ShuffleResult）
//  4. 如果啟用調校（UseTuned = true），從 tunedFS 加載 tuned artifacts
func newShufflerWithSeed(fp *profile.FeedProfile, reg *elitist.TransformRegistry, cf core.PRNGFactory, seed int64, isSim bool, tunedFS fs.FS) (*Shuffler, error) {
	m := &Shuffler{
		feedName:       fp.FeedName,
		feedId:         fp.FeedID,
		core:           core.New(cf.New(seed)),
		eng:            nil,
		ItemCount:      0,
		ShuffleRequest: nil,
		ShuffleResult:  nil,
		initseed:       seed,
		tuned:          nil,
	}
	var err error
	m.eng, err = elitist.NewEngine(fp, reg, m.core, isSim)
	if err != nil {
		return nil, err
	}
	m.ItemCount = fp.Items.Count
	m.ShuffleRequest = &buf.ShuffleRequest{}
	m.ShuffleResult = m.eng.ShuffleResult

	// 如果啟用調校，加載 tuned artifacts
	if fp.Tune.UseTuned && tunedFS != nil {
		tuned, err := loadTunedRuntime(fp, tunedFS)
		if err != nil {
			return nil, err
		}
		m.tuned = tuned
	}

	return m, nil
}

// maxRequestN 限制單一請求的清單長度上限。
const maxRequestN = 1 << 20

// Shuffle 為主要公開入口，會驗證洗牌請求，執行洗牌並回傳Shuffle結果。
func (m *Shuffler) Shuffle(r *dto.ShuffleRequest) (dto.ShuffleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 1. 校驗請求合法性
	if err := m.valid(r); err != nil {
		// 實作err代碼
		return dto.ShuffleResult{}, err
	}
	// 2. parse dto to inner shuffle request
	req, err := r.Parse()
	if err != nil {
		return dto.ShuffleResult{}, err
	}
	if req.N == 0 {
		// n 未指定時採用設定檔的清單長度
		req.N = m.ItemCount
	}

	// 2.5. 調校邏輯：請求未帶 inequality 且啟用 tuned 時，依 n 解析 tuned inequality
	if !req.HasInequality && m.tuned != nil {
		if q, ok := m.tuned.Resolve(req.N); ok {
			req.Inequality = q
			req.HasInequality = true
		}
	}
	if req.HasInequality {
		if err := elitist.CheckInequality(req.Inequality); err != nil {
			return dto.ShuffleResult{}, err
		}
	}

	// 3. get start snapshot
	startsnap, err := m.SnapshotCore()
	if err != nil {
		return dto.ShuffleResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	rem := startsnap
	if len(req.StartSnap) != 0 {
		startsnap = req.StartSnap
		if err := m.RestoreCore(req.StartSnap); err != nil {
			return dto.ShuffleResult{}, errs.NewWarn("restore core err " + err.Error())
		}
	}

	// 4. get inner shuffleResult
	sr := m.eng.GetResult(req)

	// 5. get after snapshot
	aftersnap, err := m.SnapshotCore()
	if err != nil {
		if e := m.RestoreCore(rem); e != nil {
			return dto.ShuffleResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.ShuffleResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}
	sr.State.StartCoreSnap = startsnap
	sr.State.AfterCoreSnap = aftersnap

	// 6. restore if needed
	if len(req.StartSnap) != 0 {
		if err := m.RestoreCore(rem); err != nil {
			return dto.ShuffleResult{}, errs.NewFatal("restore core back err " + err.Error())
		}
	}

	// 7. dto
	return dto.NewShuffleResultDTO(sr)
}

// ShuffleInternalAt 直接取得內部 ShuffleResult；常用於模擬器或測試
//
// 請勿在正式環境使用
//
// 此行為跳過所有檢查，由呼叫端保證 n 與 inequality 合法
func (m *Shuffler) ShuffleInternalAt(n int, inequality float64) *buf.ShuffleResult {
	m.ShuffleRequest.N = n
	m.ShuffleRequest.Inequality = inequality
	m.ShuffleRequest.HasInequality = true
	return m.eng.GetResult(m.ShuffleRequest)
}

// ShuffleInternal 以設定檔的清單長度與解析後的 inequality 執行一次內部洗牌。
func (m *Shuffler) ShuffleInternal() *buf.ShuffleResult {
	return m.ShuffleInternalAt(m.ItemCount, m.ResolveInequality(m.ItemCount))
}

// ResolveInequality 回傳指定清單長度實際生效的 inequality：
// 啟用 tuned 時優先採 tuned 值，否則採設定檔值。
func (m *Shuffler) ResolveInequality(n int) float64 {
	if m.tuned != nil {
		if q, ok := m.tuned.Resolve(n); ok {
			return q
		}
	}
	return m.eng.Profile.Inequality
}

func (m *Shuffler) valid(req *dto.ShuffleRequest) error {
	if m.feedId != req.FeedID {
		return errs.NewWarn("feed id is not matched")
	}
	if m.feedName != req.FeedName {
		return errs.NewWarn("feed name is not matched")
	}
	if req.N > maxRequestN {
		return errs.NewWarn(fmt.Sprintf("n out of range: %d > %d", req.N, maxRequestN))
	}
	return nil
}

// SnapshotCore 取得Core狀態暫存 當前僅提供取得Core狀態
//
// 之後要實作斷手重連時候提供checkpoint加入必要恢復資訊時實作
// SnapShot() <- 保留語意
func (m *Shuffler) SnapshotCore() ([]byte, error) {
	return m.core.Snapshot()
}

// RestoreCore 恢復Core狀態暫存 當前僅提供恢復Core狀態
//
// 之後要實作斷手重連時候提供checkpoint加入必要恢復資訊時實作
// Restore() <- 保留語意
func (m *Shuffler) RestoreCore(src []byte) error {
	return m.core.Restore(src)
}

// loadTunedTable 從 tunedFS 加載 tuned 文件（.json.zst 格式）。
func loadTunedTable(tunedFS fs.FS, path string) (*TunedTable, error) {
	if tunedFS == nil {
		return nil, errs.NewWarn("tunedFS is nil")
	}
	if path == "" {
		return nil, errs.NewWarn("tuned artifact path is empty")
	}

	// 讀取壓縮文件
	compressed, err := fs.ReadFile(tunedFS, path)
	if err != nil {
		return nil, errs.Wrap(err, "read tuned artifact failed")
	}

	// 解壓 zstd
	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errs.Wrap(err, "create zstd reader failed")
	}
	defer zr.Close()

	// 讀取解壓後的 JSON
	jsonBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.Wrap(err, "read decompressed data failed")
	}

	// 解析 JSON
	var table TunedTable
	if err := json.Unmarshal(jsonBytes, &table); err != nil {
		return nil, errs.Wrap(err, "unmarshal tuned table json failed")
	}

	// 驗證
	if err := table.Validate(); err != nil {
		return nil, err
	}

	return &table, nil
}

// loadTunedRuntime 從 tunedFS 加載調校運行時數據。
func loadTunedRuntime(fp *profile.FeedProfile, tunedFS fs.FS) (*TunedRuntime, error) {
	arts := fp.Tune.Artifacts
	if len(arts) == 0 {
		return nil, errs.NewFatal("tune_setting: artifacts required")
	}

	type pair struct {
		n int
		q float64
	}
	pairs := make([]pair, 0, 16)
	seen := map[int]string{}

	// 加載每個 artifact 並攤平
	for i, path := range arts {
		table, err := loadTunedTable(tunedFS, path)
		if err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("load tuned artifact[%d] (%s) failed", i, path))
		}
		if table.Transform != fp.Transform {
			return nil, errs.NewFatal(fmt.Sprintf("tuned artifact transform mismatch: %s (want %s, artifact=%s)", table.Transform, fp.Transform, path))
		}
		for j, n := range table.Ns {
			if prev, ok := seen[n]; ok {
				return nil, errs.NewFatal(fmt.Sprintf("duplicate tuned n: %d (artifact=%s and %s)", n, prev, path))
			}
			seen[n] = path
			pairs = append(pairs, pair{n: n, q: table.Values[j]})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].n < pairs[j].n })

	rt := &TunedRuntime{
		Ns:     make([]int, len(pairs)),
		Values: make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		rt.Ns[i] = p.n
		rt.Values[i] = p.q
	}
	return rt, nil
}
