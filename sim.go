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
	"crypto/rand"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/recorder"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
	"github.com/zintix-labs/shufflelab/sdk/sampler"
	"github.com/zintix-labs/shufflelab/stats"
)

const capPrepare int = 100

// Simulator 用於模擬洗牌行為，可建立多個 Shuffler 並平行紀錄統計。
type Simulator struct {
	FeedName  string                      // Feed 名稱
	FeedID    profile.PID                 // Feed ID
	fp        *profile.FeedProfile        // 方便重用建立 Shuffler 與紀錄員
	reg       *elitist.TransformRegistry  // 轉換註冊表
	cf        core.PRNGFactory            // 亂數生成器
	tunedFS   fs.FS                       // tuned artifacts 來源（nil 表示未啟用）
	initSeed  int64                       // 初始下的種子
	seedmaker *SeedMaker                  // 種子生成器
	mBuf      []*Shuffler                 // 併發執行的 Shuffler 實例
	rBuf      []*recorder.LandingRecorder // 併發洗牌紀錄員
	sBuf      []*stats.LandingReport      // 併發統計結果報表(僅Seeds需要)
}

func newSimulator(fp *profile.FeedProfile, reg *elitist.TransformRegistry, cf core.PRNGFactory, tunedFS fs.FS) (*Simulator, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(fp, reg, cf, seed.Int64(), tunedFS)
}

func newSimulatorWithSeed(fp *profile.FeedProfile, reg *elitist.TransformRegistry, cf core.PRNGFactory, seed int64, tunedFS fs.FS) (*Simulator, error) {
	s := &Simulator{
		FeedName:  fp.FeedName,
		FeedID:    fp.FeedID,
		fp:        fp,
		reg:       reg,
		cf:        cf,
		tunedFS:   tunedFS,
		initSeed:  seed,
		seedmaker: NewSeedMaker(seed),
		mBuf:      make([]*Shuffler, 1, capPrepare),
		rBuf:      make([]*recorder.LandingRecorder, 0, capPrepare),
		sBuf:      make([]*stats.LandingReport, 0, capPrepare),
	}
	m, err := newShufflerWithSeed(fp, reg, cf, s.initSeed, true, tunedFS)
	if err != nil {
		return nil, err
	}
	s.mBuf[0] = m
	return s, nil
}

// Sim 單線模擬器：以設定檔的清單長度與解析後的 inequality 連續跑指定 trials 並回傳統計結果與用時
func (s *Simulator) Sim(trials int, showpb bool) (*stats.LandingReport, time.Duration, error) {
	m := s.mBuf[0]
	return s.SimAt(m.ItemCount, m.ResolveInequality(m.ItemCount), trials, showpb)
}

// SimAt 單線模擬器：以指定清單長度與 inequality 連續跑指定 trials 並回傳統計結果與用時
func (s *Simulator) SimAt(n int, inequality float64, trials int, showpb bool) (*stats.LandingReport, time.Duration, error) {
	defer s.reset()
	if n < 1 {
		return nil, 0, errs.NewWarn("n must > 0")
	}
	if err := elitist.CheckInequality(inequality); err != nil {
		return nil, 0, err
	}
	if trials < 1 {
		return nil, 0, errs.NewWarn("trials must > 0")
	}
	if len(s.rBuf) == 0 {
		r, err := recorder.NewLandingRecorder(s.FeedName, s.FeedID, n, s.fp.Sim.TopK, inequality)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	r := s.rBuf[0]
	m := s.mBuf[0]

	bar := pb.StartNew(trials)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < trials; i++ {
		sr := m.ShuffleInternalAt(n, inequality)
		r.Record(sr)
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	result := r.Done()
	result.Done()

	return result, used, nil
}

// SimMP 平行執行多個 Shuffler，總計 trials*mp 次洗牌，合併統計結果後 回傳統計結果與用時
func (s *Simulator) SimMP(trials int, mp int, showpb bool) (*stats.LandingReport, time.Duration, error) {
	m := s.mBuf[0]
	return s.SimMPAt(m.ItemCount, m.ResolveInequality(m.ItemCount), trials, mp, showpb)
}

// SimMPAt 平行執行多個 Shuffler，以指定清單長度與 inequality 總計 trials*mp 次洗牌，合併統計結果後 回傳統計結果與用時
func (s *Simulator) SimMPAt(n int, inequality float64, trials int, mp int, showpb bool) (*stats.LandingReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if n < 1 {
		return nil, 0, errs.NewWarn("n must > 0")
	}
	if err := elitist.CheckInequality(inequality); err != nil {
		return nil, 0, err
	}
	if trials < 1 {
		return nil, 0, errs.NewWarn("trials must > 0")
	}
	for len(s.mBuf) < mp {
		m, err := newShufflerWithSeed(s.fp, s.reg, s.cf, s.seedmaker.Next(), true, s.tunedFS)
		if err != nil {
			return nil, 0, err
		}
		s.mBuf = append(s.mBuf, m)
	}

	for len(s.rBuf) < mp {
		r, err := recorder.NewLandingRecorder(s.FeedName, s.FeedID, n, s.fp.Sim.TopK, inequality)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(trials * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			g := s.mBuf[i]
			st := s.rBuf[i]
			for r := 0; r < trials; r++ {
				sr := g.ShuffleInternalAt(n, inequality)
				st.Record(sr)
				bar.Increment()
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	st, _ := recorder.MergeLandingRecorder(s.rBuf)
	result := st.Done()
	result.Done()

	return result, used, nil
}

// SimSeeds 模擬多個獨立亂數流各自的洗牌歷程，並產出全流合併報表與流間離散度報表。
func (s *Simulator) SimSeeds(mp int, streams int, trials int, showpb bool) (*stats.LandingReport, *stats.EstimatorSeeds, time.Duration, error) {
	defer s.reset()
	if streams < 1 || trials < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param")
	}
	n := s.mBuf[0].ItemCount
	inequality := s.mBuf[0].ResolveInequality(n)

	// 	準備並行 Shuffler
	for len(s.mBuf) < mp {
		m, err := newShufflerWithSeed(s.fp, s.reg, s.cf, s.seedmaker.Next(), true, s.tunedFS)
		if err != nil {
			return nil, nil, 0, err
		}
		s.mBuf = append(s.mBuf, m)
	}

	// 準備亂數流
	s.sBuf = make([]*stats.LandingReport, streams)
	for len(s.rBuf) < streams {
		r, err := recorder.NewLandingRecorder(s.FeedName, s.FeedID, n, s.fp.Sim.TopK, inequality)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	// 作一個2048大小的緩衝channel 使stream依序處理
	jobs := make(chan *recorder.LandingRecorder, 2048)

	wg := new(sync.WaitGroup)
	wg.Add(mp) // 併發 Shuffler

	bar := pb.StartNew(streams)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	// 併發執行
	for w := 0; w < mp; w++ {
		go sim(wg, s.mBuf[w], jobs, n, inequality, trials, bar)
	}
	// 此時併發已經完成，但由於所有workers都無法從jobs當中取出j(還沒塞進去) 所以不會結束

	// 塞進亂數流，開始模擬
	for _, j := range s.rBuf {
		jobs <- j
	}
	close(jobs) // 亂數流送完處理完畢關閉通道 通知所有 Shuffler 不會再有新資料
	wg.Wait()   // 等待 Shuffler 都執行完任務
	used := time.Since(bar.StartTime())
	bar.Finish()

	// 全流合併的基準報表
	record, err := recorder.MergeLandingRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	st := record.Done()
	st.Done()

	// 亂數流分析報表
	for i, r := range s.rBuf {
		s.sBuf[i] = r.Done()
		s.sBuf[i].Done()
	}
	est := stats.EstimatorSeedSpread(s.sBuf)
	return st, est, used, nil
}

func sim(wg *sync.WaitGroup, m *Shuffler, jobs chan *recorder.LandingRecorder, n int, inequality float64, trials int, bar *pb.ProgressBar) {
	defer wg.Done()
	for j := range jobs { // j := <- jobs
		for range trials {
			sr := m.ShuffleInternalAt(n, inequality)
			j.Record(sr)
		}
		bar.Increment()
	}
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
}

// MixEntry 描述混流模擬中的一個 feed 與其流量權重。
type MixEntry struct {
	FID    profile.PID `json:"fid"`
	Weight int         `json:"weight"`
}

// mixPicker 是 LUT 與 AliasTable 的共同抽樣入口。
type mixPicker interface {
	Pick(c *core.Core) int
}

// mixLUTLimit 權重總和在此之內用 LUT，超過改用 AliasTable。
const mixLUTLimit = 100_000

// SimMix 依流量權重混合多個 feed：每回合抽出一個 feed 執行一次洗牌，回傳各 feed 的統計結果與用時。
//
// 回傳的報表順序對應 entries 順序。
func (p *ShuffleLab) SimMix(entries []MixEntry, trials int, showpb bool) ([]*stats.LandingReport, time.Duration, error) {
	if !p.cat.IsFrozen() {
		return nil, 0, errs.NewFatal("catalog is not frozen yet")
	}
	if len(entries) == 0 {
		return nil, 0, errs.NewWarn("mix entries required")
	}
	if trials < 1 {
		return nil, 0, errs.NewWarn("trials must > 0")
	}

	weights := make([]int, len(entries))
	total := 0
	for i, e := range entries {
		if e.Weight < 0 {
			return nil, 0, errs.NewWarn(fmt.Sprintf("mix weight must not be negative: fid=%d", e.FID))
		}
		weights[i] = e.Weight
		total += e.Weight
	}
	if total == 0 {
		return nil, 0, errs.NewWarn("mix weights are all zero")
	}

	ms := make([]*Shuffler, len(entries))
	rs := make([]*recorder.LandingRecorder, len(entries))
	for i, e := range entries {
		m, err := p.NewShuffler(e.FID, true)
		if err != nil {
			return nil, 0, err
		}
		r, err := recorder.NewLandingRecorder(m.feedName, m.feedId, m.ItemCount, m.eng.Profile.Sim.TopK, m.ResolveInequality(m.ItemCount))
		if err != nil {
			return nil, 0, err
		}
		ms[i] = m
		rs[i] = r
	}

	// 權重總和小用 LUT，大改用 AliasTable
	var picker mixPicker
	if total <= mixLUTLimit {
		picker = sampler.BuildLUT(weights)
	} else {
		picker = sampler.BuildAliasTable(weights)
	}

	// 抽 feed 的亂數流獨立於各 Shuffler，避免影響它們的可重現性
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, 0, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	c := core.New(p.cf.New(seed.Int64()))

	bar := pb.StartNew(trials)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < trials; i++ {
		k := picker.Pick(c)
		sr := ms[k].ShuffleInternal()
		rs[k].Record(sr)
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()

	reports := make([]*stats.LandingReport, len(entries))
	for i, r := range rs {
		reports[i] = r.Done()
		reports[i].Done()
	}
	return reports, used, nil
}

const mask63 = uint64(1<<63) - 1

// SeedMaker 併發安全的種子生成器：從單一 root seed 衍生出一串彼此獨立、
// 可重現的子種子（pool、Simulator、tuner 都靠它派發）。
type SeedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func NewSeedMaker(seed int64) *SeedMaker {
	s := &SeedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// state 走全週期（不重複），再用可逆 mix63 打散
//
// 注意：此方法可能在併發環境下被多 goroutines 同時呼叫（例如 SimMP / SimSeeds）。
// 因此 state 的推進必須是原子的：
//   - 使用 CAS（Compare-And-Swap）迴圈確保每次呼叫都會取得唯一的下一個 state。
//   - 回傳值使用推進後的 state 經 mix63 打散後的結果。
func (s *SeedMaker) Next() int64 {
	for {
		old := s.state.Load()                                            // always masked
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
