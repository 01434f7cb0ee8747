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
	"fmt"

	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/sampler"
)

// AutoRaceThreshold 引擎外 (facade) 的 scan/race 自動切換點，
// 與 profile.SamplerSetting 的預設門檻一致。
const AutoRaceThreshold = 512

// Engine 單一 feed 的洗牌引擎。
// 持有權重轉換與可重用的結果緩衝，本身不做併發控制，
// 多執行緒環境請交由上層以鎖或 pool 管理。
type Engine struct {
	Core          *core.Core
	Profile       *profile.FeedProfile
	FeedName      string
	FeedID        profile.PID
	ShuffleResult *buf.ShuffleResult
	IsSim         bool

	transform   Transform
	extend      buf.ExtendResult
	uniformFast bool
	wbuf        []float64
}

// NewEngine 創建洗牌引擎。fp 必須已通過 Init 驗證。
func NewEngine(fp *profile.FeedProfile, reg *TransformRegistry, c *core.Core, isSim bool) (*Engine, error) {
	e := &Engine{
		Core:     c,
		Profile:  fp,
		FeedName: fp.FeedName,
		FeedID:   fp.FeedID,
		IsSim:    isSim,
	}
	if err := e.init(reg); err != nil {
		return nil, err
	}
	return e, nil
}

// GetResult 執行一次洗牌並回傳結果緩衝。
// 回傳的 *ShuffleResult 由引擎持有並於下次呼叫時重置，
// 呼叫端需要保留內容時必須先行複製。
//
// req 由上層驗證: n >= 0，inequality 為有限非負值。
func (e *Engine) GetResult(req *buf.ShuffleRequest) *buf.ShuffleResult {
	sr := e.StartNewShuffle(req)

	n := sr.N
	if n == 0 {
		sr.Strategy = profile.StrategyUniform
		return sr
	}

	// 冪次為 0 且轉換宣告均勻時直接 Fisher-Yates，省掉整段權重計算
	if sr.Inequality == 0 && e.uniformFast {
		sr.Strategy = profile.StrategyUniform
		sr.Perm = e.Core.PermInto(sr.Perm, n)
		if e.Profile.Sampler.WithWeights {
			w := sr.WeightsBuf(n)
			for i := range w {
				w[i] = 1
			}
		}
		return sr
	}

	e.wbuf = e.transform.Weights(e.wbuf, n, sr.Inequality)
	w := e.wbuf
	if len(w) != n {
		// 違反 Transform 合約，屬程式錯誤
		panic(fmt.Sprintf("elitist: transform %s returned %d weights for %d items", e.Profile.Transform, len(w), n))
	}

	st := e.Profile.Sampler.Resolve(n)
	sr.Strategy = st
	switch st {
	case profile.StrategyScan:
		sr.Perm = sampler.CDFShuffleInto(e.Core, w, sr.Perm)
	default:
		sr.Perm = sampler.WeightedShuffleInto(e.Core, w, sr.Perm)
	}

	if e.Profile.Sampler.WithWeights {
		copy(sr.WeightsBuf(n), w)
	}
	return sr
}

// StartNewShuffle 重置結果緩衝並填入本次請求的參數。
// 請求未帶 inequality 時採用 profile 設定值。
func (e *Engine) StartNewShuffle(req *buf.ShuffleRequest) *buf.ShuffleResult {
	e.ResetResult()

	sr := e.ShuffleResult
	sr.N = req.N
	if req.HasInequality {
		sr.Inequality = req.Inequality
	} else {
		sr.Inequality = e.Profile.Inequality
	}
	return sr
}

// ResetResult 重置結果緩衝 (保留容量)。
func (e *Engine) ResetResult() {
	e.ShuffleResult.Reset()
}

// ----------------------------------------------------------------

func (e *Engine) init(reg *TransformRegistry) error {
	e.ShuffleResult = buf.NewShuffleResult(e.Profile)

	tr, err := reg.Build(e.Profile.Transform, e)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("build transform failed: feed=%q tkey=%q", e.FeedName, e.Profile.Transform))
	}
	e.transform = tr

	if uz, ok := tr.(UniformAtZero); ok {
		e.uniformFast = uz.UniformAtZero()
	}
	if ex, ok := tr.(Extender); ok {
		e.extend = ex.Extend()
		e.ShuffleResult.Ext = e.extend
	}

	n := e.Profile.Items.Count
	if cap(e.wbuf) < n {
		e.wbuf = make([]float64, 0, n)
	}
	return nil
}
