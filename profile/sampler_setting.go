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

import (
	"fmt"

	"github.com/zintix-labs/shufflelab/errs"
)

// Strategy 定義抽樣策略
type Strategy int

const (
	StrategyAuto    Strategy = iota // 依清單長度自動選擇
	StrategyScan                    // 逐次累積掃描 O(n^2)，小清單常數低
	StrategyRace                    // exponential race O(n log n)，大清單用
	StrategyUniform                 // 冪次為 0 的 Fisher-Yates 快路徑，僅供結果回報，不可由設定指定
)

var strategyMap = map[string]Strategy{
	"auto": StrategyAuto,
	"scan": StrategyScan,
	"race": StrategyRace,
}

// ParseStrategy 由設定字串解析抽樣策略。
func ParseStrategy(s string) (Strategy, bool) {
	st, ok := strategyMap[s]
	return st, ok
}

// String 回傳策略的設定字串，用於 DTO 與日誌。
func (s Strategy) String() string {
	switch s {
	case StrategyScan:
		return "scan"
	case StrategyRace:
		return "race"
	case StrategyUniform:
		return "uniform"
	default:
		return "auto"
	}
}

// 自動模式的預設切換點：清單長度達此值改用 race。
const defaultRaceThreshold = 512

// SamplerSetting 描述洗牌器的抽樣策略與結果欄位設定。
type SamplerSetting struct {
	Strategy      Strategy `yaml:"-"               json:"-"`
	StrategyStr   string   `yaml:"strategy"        json:"strategy"`
	RaceThreshold int      `yaml:"race_threshold"  json:"race_threshold"`
	WithWeights   bool     `yaml:"with_weights"    json:"with_weights"`
	initFlag      bool
}

// Init 解析策略字串並套用預設值。
// strategy 留空時視為 auto，race_threshold 未設定時採用預設切換點。
func (ss *SamplerSetting) Init() error {
	if ss.initFlag {
		return nil
	}

	if len(ss.StrategyStr) == 0 {
		ss.StrategyStr = "auto"
	}
	st, ok := ParseStrategy(ss.StrategyStr)
	if !ok {
		return errs.NewFatal(fmt.Sprintf("strategy error: %s", ss.StrategyStr))
	}
	ss.Strategy = st

	if ss.RaceThreshold <= 0 {
		ss.RaceThreshold = defaultRaceThreshold
	}

	ss.initFlag = true
	return nil
}

// Resolve 依實際清單長度決定本次使用的策略。
// auto 模式以 RaceThreshold 為界：長度低於門檻用 scan，否則用 race。
func (ss *SamplerSetting) Resolve(n int) Strategy {
	if ss.Strategy != StrategyAuto {
		return ss.Strategy
	}
	if n < ss.RaceThreshold {
		return StrategyScan
	}
	return StrategyRace
}
