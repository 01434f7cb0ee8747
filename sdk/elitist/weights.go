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

// Package elitist 實作「精英洗牌」(elitist shuffle)：
// 依排名給權重的非均勻洗牌，平均而言保住原始排序，
// 又讓每個項目都有機會往前成為曝光對象。
//
// 核心參數 inequality (不平等度) 控制頭部優勢：
//   - 0: 完全均勻洗牌，排名不帶任何優勢。
//   - 1: 權重與排名基底成正比的溫和擾動。
//   - 越大: 頭部越難被翻越，排列越接近恆等。
//
// 權重的構成分兩層：
//  1. 基底權重 (base): 遞減線性斜坡 base[i] = 1 - i/n，落在 (0, 1]，
//     保證最後一名也有非零機率。
//  2. 冪次轉換 (power): w[i] = base[i]^inequality，
//     inequality 放大或抹平基底的差距。
//
// 抽樣則是標準的加權不放回抽樣，交給 sampler 套件的兩種等價策略。
package elitist

import (
	"math"
)

// BaseWeightsInto 填入遞減線性基底權重：dst[i] = 1 - i/n。
//
// 首項恆為 1，末項為 1/n，全程嚴格大於 0，
// 因此冪次轉換前的每個項目都保有被抽中的資格。
// dst 容量不足時重新配置。
func BaseWeightsInto(dst []float64, n int) []float64 {
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	fn := float64(n)
	for i := range dst {
		dst[i] = 1 - float64(i)/fn
	}
	return dst
}

// RampWeightsInto 填入完整的精英權重：dst[i] = (1 - i/n)^inequality。
//
// 呼叫端保證 inequality 是非負且有限的數值 (入口層已擋下非法值)。
//
// 特例：
//   - inequality == 0: 全為 1，等價於均勻洗牌。
//   - inequality == 1: 即基底權重本身，省去 math.Pow。
//   - inequality 很大: 尾端權重會下溢為 0，抽樣時沉底，
//     這是冪次語意的自然結果，不做額外處理。
func RampWeightsInto(dst []float64, n int, inequality float64) []float64 {
	dst = BaseWeightsInto(dst, n)
	switch inequality {
	case 0:
		for i := range dst {
			dst[i] = 1
		}
	case 1:
		// 基底即權重
	default:
		for i, b := range dst {
			dst[i] = math.Pow(b, inequality)
		}
	}
	return dst
}
