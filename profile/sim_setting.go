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

package profile

import "github.com/zintix-labs/shufflelab/errs"

const (
	defaultSimTrials = 5000  // 預設模擬輪數
	defaultSimTopK   = 3     // 頭部保留統計的 K
	defaultSimBucket = 10    // 位移直方圖桶數
	defaultChiAlpha  = 0.001 // 均勻性檢定顯著水準
)

// SimSetting 描述模擬與報表的設定。
//
// Fields:
//   - Trials: 預設模擬輪數，API 請求可覆寫。
//   - TopK: 頭部保留率統計的前段長度。
//   - Buckets: 位移直方圖的分桶數量。
//   - ChiAlpha: 落點均勻性卡方檢定的顯著水準 (inequality=0 的驗收門檻)。
type SimSetting struct {
	Trials   int     `yaml:"trials"     json:"trials"`
	TopK     int     `yaml:"top_k"      json:"top_k"`
	Buckets  int     `yaml:"buckets"    json:"buckets"`
	ChiAlpha float64 `yaml:"chi_alpha"  json:"chi_alpha"`
	initFlag bool
}

// Init 套用預設值並檢查合法範圍。
func (ss *SimSetting) Init() error {
	if ss.initFlag {
		return nil
	}

	if ss.Trials < 0 {
		return errs.NewFatal("sim trials must not be negative")
	}
	if ss.Trials == 0 {
		ss.Trials = defaultSimTrials
	}
	if ss.TopK <= 0 {
		ss.TopK = defaultSimTopK
	}
	if ss.Buckets <= 0 {
		ss.Buckets = defaultSimBucket
	}
	if ss.ChiAlpha <= 0 || ss.ChiAlpha >= 1 {
		ss.ChiAlpha = defaultChiAlpha
	}

	ss.initFlag = true
	return nil
}
