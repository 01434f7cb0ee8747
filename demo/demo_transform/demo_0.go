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

package demo_transform

import (
	"log"
	"math"

	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

// ============================================================
// ** 註冊 **
// ============================================================

// Transforms 集中本包全部示範轉換，組裝端與內建 registry 合併後使用。
var Transforms = elitist.NewTransformRegistry()

func init() {
	tkey := "demo_boltzmann"
	builder := buildTf0000
	reg := Transforms
	if err := elitist.TransformRegister[*ext0000](profile.TransformKey(tkey), builder, reg); err != nil {
		log.Fatalf("%s register failed: %v", tkey, err)
	}
}

// ============================================================
// ** 轉換介面 **
// ============================================================

type tf0000 struct {
	fixed *fixed0000
	ext   *ext0000
}

func buildTf0000(e *elitist.Engine) (elitist.Transform, error) {
	t := &tf0000{
		fixed: new(fixed0000),
		ext:   nil,
	}
	if err := profile.DecodeFixed(e.Profile, t.fixed); err != nil {
		return nil, err
	}
	if t.fixed.Temperature <= 0 {
		return nil, errs.NewFatal("demo_boltzmann: temperature must be > 0")
	}
	t.fixed.labels = e.Profile.Items.Labels
	t.ext = t.newext(e.IsSim)
	return t, nil
}

// UniformAtZero 冪次 0 時 exp(0) 全為 1, 走引擎的 Fisher-Yates 快路徑。
func (t *tf0000) UniformAtZero() bool { return true }

// Extend 交出診斷緩衝, 由引擎掛到 ShuffleResult 上。
func (t *tf0000) Extend() buf.ExtendResult { return t.ext }

// ============================================================
// ** 此轉換 Fixed 設定宣告 **
// ============================================================

// fixed
type fixed0000 struct {
	Temperature float64  `yaml:"temperature"`
	DemoTags    []string `yaml:"demo_tags"`
	DemoNote    string   `yaml:"demo_note"`
	labels      []string
}

// ============================================================
// ** 轉換需要的額外結構宣告: 需要實作 Reset 以及 SnapShot **
// ============================================================

// topWeightsKeep 是快照中保留的頭部權重數量上限。
const topWeightsKeep = 5

type ext0000 struct {
	HeadWeight float64   `json:"head_w"`
	TailWeight float64   `json:"tail_w"`
	DecayRatio float64   `json:"decay_ratio"`
	TopWeights []float64 `json:"top_w,omitzero"`
	isSim      bool
}

func (t *tf0000) newext(isSim bool) *ext0000 {
	return &ext0000{
		HeadWeight: 0,
		TailWeight: 0,
		DecayRatio: 0,
		TopWeights: make([]float64, 0, topWeightsKeep),
		isSim:      isSim,
	}
}

func (e *ext0000) Reset() {
	e.HeadWeight = 0
	e.TailWeight = 0
	e.DecayRatio = 0
	e.TopWeights = e.TopWeights[:0]
}

func (e *ext0000) Snapshot() any {
	if e.isSim {
		return nil
	}
	top := make([]float64, len(e.TopWeights))
	copy(top, e.TopWeights)
	ec := &ext0000{
		HeadWeight: e.HeadWeight,
		TailWeight: e.TailWeight,
		DecayRatio: e.DecayRatio,
		TopWeights: top,
	}
	return ec
}

// ============================================================
// ** 轉換主邏輯入口 **
// ============================================================

// Weights 主要介面函數 依位次產生波茲曼衰減權重
//
//	w[i] = exp(-(i/n) * inequality / temperature)
//
// 溫度越低頭部越突出；inequality 為 0 時自然退化為全 1。
func (t *tf0000) Weights(dst []float64, n int, inequality float64) []float64 {
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	ext := t.ext
	ext.Reset()
	if n == 0 {
		return dst
	}

	// 1. 依位次計算衰減
	k := inequality / t.fixed.Temperature
	fn := float64(n)
	for i := range dst {
		dst[i] = math.Exp(-k * float64(i) / fn)
	}

	// 2. 填診斷資料
	ext.HeadWeight = dst[0]
	ext.TailWeight = dst[n-1]
	ext.DecayRatio = dst[n-1] / dst[0]
	ext.TopWeights = append(ext.TopWeights, dst[:min(n, topWeightsKeep)]...)

	return dst
}
