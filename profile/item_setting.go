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

// ItemSetting 描述清單內容的設定。
//
// Fields:
//   - Count: 預設清單長度，請求未帶 n 與 items 時採用。
//   - Labels: 選用的項目標籤，報表與終端輸出用；若留空則以索引顯示。
type ItemSetting struct {
	Count    int      `yaml:"count"   json:"count"`
	Labels   []string `yaml:"labels"  json:"labels"`
	initFlag bool
}

// Init 檢查不合法的設定
func (is *ItemSetting) Init() error {
	// 檢查初始化旗標
	if is.initFlag {
		return nil
	}
	if is.Count < 0 {
		return errs.NewFatal("item count must not be negative")
	}
	// 如果 Labels 不是 nil，長度要等於 Count
	if is.Labels != nil {
		if len(is.Labels) != is.Count {
			return errs.NewFatal("len(labels) != item count")
		}
	}
	is.initFlag = true
	return nil
}

// Label 回傳第 i 項的顯示名稱，無標籤時回傳空字串。
func (is *ItemSetting) Label(i int) string {
	if i < 0 || i >= len(is.Labels) {
		return ""
	}
	return is.Labels[i]
}
