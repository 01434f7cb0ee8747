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
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
)

// TransformElitist 內建精英轉換的註冊鍵。
const TransformElitist profile.TransformKey = "elitist"

// rampTransform 內建的精英權重轉換: 線性遞減底權重取 inequality 次方。
// 無內部狀態, 同一實例可併發使用。
type rampTransform struct{}

func (rampTransform) Weights(dst []float64, n int, inequality float64) []float64 {
	return RampWeightsInto(dst, n, inequality)
}

// UniformAtZero 冪次為 0 時權重全為 1, 引擎可直接走 Fisher-Yates 快路徑。
func (rampTransform) UniformAtZero() bool { return true }

// BuiltinRegistry 回傳只含內建轉換的全新 registry。
// 組裝端應以 MergeTransformRegistry 把它與外部 registry 合併。
func BuiltinRegistry() *TransformRegistry {
	reg := NewTransformRegistry()
	err := TransformRegister[*buf.NoExtend](TransformElitist, func(e *Engine) (Transform, error) {
		return rampTransform{}, nil
	}, reg)
	if err != nil {
		// 全新 registry 不可能撞鍵, 走到這裡是程式錯誤
		panic(err)
	}
	return reg
}
