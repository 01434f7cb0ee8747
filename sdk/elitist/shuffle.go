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
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/perm"
	"github.com/zintix-labs/shufflelab/sdk/sampler"
)

// ----------------------------------------------------------------
// 套件層入口
//
// 不需要 profile 與 Engine 的輕量用法: 傳入清單與冪次即可。
// 每次呼叫獨立配置輸出，適合低頻場景; 高頻服務請改用 Engine
// 以重用 buffer。
// ----------------------------------------------------------------

// Shuffle 回傳 items 的精英洗牌副本，原切片不會被修改。
//
// items 應已按分數由高至低排序，inequality 控制頭部優勢:
// 0 為完全均勻，值越大越接近原始排名。
//
// c 為 nil 時使用套件預設亂數來源 (crypto 種子，內部加鎖)。
// 需要可重現結果或高併發時請自備 *core.Core。
//
// inequality 為負值或非有限值時回傳 errs.Warn 等級錯誤。
func Shuffle[T any](items []T, inequality float64, c *core.Core) ([]T, error) {
	p, err := ShufflePerm(len(items), inequality, c)
	if err != nil {
		return nil, err
	}
	return perm.Apply(p, items), nil
}

// ShufflePerm 產生精英洗牌排列: 回傳長度 n 的切片 p，
// p[pos] 為落在 pos 位置的原始名次。
//
// n 為 0 時回傳空排列，c 為 nil 時同 Shuffle 使用套件預設來源。
func ShufflePerm(n int, inequality float64, c *core.Core) ([]int, error) {
	if err := CheckInequality(inequality); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errs.NewWarn(fmt.Sprintf("item count must be non-negative: %d", n))
	}

	if c == nil {
		dc, unlock := lockDefaultCore()
		defer unlock()
		c = dc
	}
	return shufflePerm(n, inequality, c), nil
}

// CheckInequality 驗證冪次參數。
// 負值會反轉頭部優勢，NaN 與 Inf 會讓權重失去意義，一律拒絕。
func CheckInequality(q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return errs.NewWarn(fmt.Sprintf("inequality must be a finite non-negative number: %v", q))
	}
	return nil
}

// shufflePerm 參數已驗證後的主流程，策略切換點與引擎一致。
func shufflePerm(n int, q float64, c *core.Core) []int {
	p := make([]int, 0, n)
	if n == 0 {
		return p
	}
	if q == 0 {
		return c.PermInto(p, n)
	}

	w := RampWeightsInto(make([]float64, 0, n), n, q)
	if n < AutoRaceThreshold {
		return sampler.CDFShuffleInto(c, w, p)
	}
	return sampler.WeightedShuffleInto(c, w, p)
}

// ----------------------------------------------------------------
// 套件預設亂數來源
// ----------------------------------------------------------------

var (
	defaultMu   sync.Mutex
	defaultCore *core.Core
)

// lockDefaultCore 回傳套件預設核心並取得其專屬鎖，呼叫端用畢必須解鎖。
// 預設核心非併發安全，鎖的範圍涵蓋整段取樣。
func lockDefaultCore() (*core.Core, func()) {
	defaultMu.Lock()
	if defaultCore == nil {
		defaultCore = core.New(core.Default().New(cryptoSeed()))
	}
	return defaultCore, defaultMu.Unlock
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// 熵源異常屬於平台故障，沒有安全的退化路徑
		panic(err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
