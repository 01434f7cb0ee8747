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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zintix-labs/shufflelab/corefmt"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
)

type ShuffleRequest struct {
	UID      string      `json:"uid"`  // 唯一識別碼
	FeedName string      `json:"feed"` // 要洗的清單
	FeedID   profile.PID `json:"fid"`  // 清單設定檔編號

	// N 為本次清單長度。省略或為 0 時採用設定檔的 items.count；
	// 服務端不提供「洗空清單」的語意，空結果只在程式庫層有意義。
	N int `json:"n,omitempty"`

	// Inequality / HasInequality Contract（強硬約束，避免 inequality=0 的雙重語意）：
	//   - 若 has_inequality 為 false（或未提供），則 inequality 必須省略；否則視為 request 格式錯誤。
	//   - 若 has_inequality 為 true，則以 inequality 覆寫設定檔預設；省略則視為 0（完全均勻）。
	Inequality    float64 `json:"inequality,omitempty"`
	HasInequality bool    `json:"has_inequality,omitempty"`

	// StartB64U 是 RNG Core 起始快照的 Base64URL 字串（可選）。
	//   - 缺省：新的一次洗牌，引擎延續自身 RNG 流水。
	//   - 有值：回放（replay），引擎從該快照 restore 後執行，相同輸入必得相同排列。
	// 注意：請求端不得提供 After；after_b64u 只會由引擎在回應中回傳，用於審計串接。
	StartB64U string `json:"start_b64u,omitempty"`
}

// DecodeShuffleRequest 會把 HTTP 請求解碼成 ShuffleRequest。
//
// 支援：
//   - GET：從 query string 讀取參數（uid/feed/fid/n/inequality/has_inequality/start_b64u）。
//   - POST：從 JSON body 反序列化。
//
// 注意：
//   - 這裡只負責「解碼（decode）」與基本型別轉換，不做任何業務合法性校驗；
//     合法性（例如該 feed 是否存在、inequality 是否有效）應由上層（Shuffler/Runtime）決定。
//   - 為避免過大 body 影響服務，POST 會對 body 做大小限制（預設 1MiB）。
//   - POST 會開啟 DisallowUnknownFields()，對未知欄位採用嚴格拒絕，以避免靜默丟資料。
func DecodeShuffleRequest(r *http.Request) (*ShuffleRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}

	req := new(ShuffleRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.FeedName = q.Get("feed")

		if s := q.Get("fid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 0)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid fid: %v", err))
			}
			req.FeedID = profile.PID(u)
		}

		if s := q.Get("n"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid n: %v", err))
			}
			req.N = v
		}

		if s := q.Get("inequality"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid inequality: %v", err))
			}
			req.Inequality = v
		}

		if s := q.Get("has_inequality"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, errs.NewWarn("invalid has_inequality value " + err.Error())
			}
			req.HasInequality = v
		}

		req.StartB64U = q.Get("start_b64u")
		return req, nil

	case http.MethodPost:
		// 防止 body 過大（預設 1MiB）
		const maxBody = 1 << 20
		body := io.LimitReader(r.Body, maxBody)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("method not allowed")
	}
}

// Parse 驗證請求契約並轉成引擎內部請求。
//
// 這裡做的是「格式契約」層級的檢查（inequality 雙重語意、快照可解碼、n 非負），
// 數值合法性（inequality 是否有限非負）由 Shuffler 檢查。
func (wr *ShuffleRequest) Parse() (*buf.ShuffleRequest, error) {
	if !wr.HasInequality && wr.Inequality != 0 {
		return nil, errs.NewWarn("has_inequality is false but inequality is not zero")
	}
	if wr.N < 0 {
		return nil, errs.NewWarn(fmt.Sprintf("n must be non-negative: %d", wr.N))
	}

	var snap []byte
	if wr.StartB64U != "" {
		b, err := corefmt.DecodeBase64URL(wr.StartB64U)
		if err != nil {
			return nil, errs.NewWarn("core snap decode failed " + err.Error())
		}
		snap = b
	}

	req := &buf.ShuffleRequest{
		UID:           wr.UID,
		FeedName:      wr.FeedName,
		FeedID:        wr.FeedID,
		N:             wr.N,
		Inequality:    wr.Inequality,
		HasInequality: wr.HasInequality,
		StartSnap:     snap,
	}
	return req, nil
}
