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

package dto

import (
	"github.com/zintix-labs/shufflelab/corefmt"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/perm"
)

type ShuffleResult struct {
	FeedName   string       `json:"feed"`              // 清單名稱
	FeedID     profile.PID  `json:"feedid"`            // 設定檔編號
	N          int          `json:"n"`                 // 本次清單長度
	Inequality float64      `json:"inequality"`        // 實際生效的控制參數
	Strategy   string       `json:"strategy"`          // 實際使用的抽樣策略
	Perm       []int        `json:"perm"`              // 位置 → 原始名次
	Landing    []int        `json:"landing"`           // 原始名次 → 位置 (Perm 的反排列)
	Weights    []float64    `json:"weights,omitempty"` // 本次使用的權重 (with_weights 開啟時)
	State      ShuffleState `json:"shuffle_state"`     // 重放/審計資訊

	ExtendResult any `json:"ext,omitempty"` // 轉換擴充診斷，經註冊的 render 轉型後輸出
}

type ShuffleState struct {
	StartCoreSnapB64U string `json:"start_b64u"` // 必回
	AfterCoreSnapB64U string `json:"after_b64u"` // 必回
}

// NewShuffleResultDTO 把內部結果緩衝轉成對外輸出結構。
//
// sr 是會被下一次洗牌覆寫的重用緩衝，因此這裡對 Perm/Weights 做深拷貝，
// DTO 產生後與引擎狀態完全脫鉤。
func NewShuffleResultDTO(sr *buf.ShuffleResult) (ShuffleResult, error) {
	if sr == nil {
		return ShuffleResult{}, errs.NewWarn("shuffle result is nil")
	}

	p := make([]int, len(sr.Perm))
	copy(p, sr.Perm)

	dto := ShuffleResult{
		FeedName:   sr.FeedName,
		FeedID:     sr.PID,
		N:          sr.N,
		Inequality: sr.Inequality,
		Strategy:   sr.Strategy.String(),
		Perm:       p,
		Landing:    perm.Invert(p),
		State: ShuffleState{
			StartCoreSnapB64U: corefmt.EncodeBase64URL(sr.State.StartCoreSnap),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(sr.State.AfterCoreSnap),
		},
	}

	if len(sr.Weights) > 0 {
		dto.Weights = make([]float64, len(sr.Weights))
		copy(dto.Weights, sr.Weights)
	}

	if sr.Ext != nil {
		dto.ExtendResult = renderExtendResult(sr.Transform, sr.Ext.Snapshot())
	}

	return dto, nil
}
