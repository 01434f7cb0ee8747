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

package svrcfg

import (
	"log/slog"

	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/server/logger"
)

// SvrCfg 是 server 組裝所需的全部依賴。
//
// Fields:
//   - Log: 結構化 logger；未注入時 Vaild 會補上預設的 async logger。
//   - ShufflerPoolSize: 每個 feed 的洗牌器池深度（併發上限）。
//   - Lab: 已組裝完成的 ShuffleLab；routes 與 runtime 都由它派生。
type SvrCfg struct {
	Log              *slog.Logger
	ShufflerPoolSize int
	Lab              *shufflelab.ShuffleLab
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}

	// 1 <= sc.ShufflerPoolSize <= 10
	// for 資源管理
	sc.ShufflerPoolSize = max(1, sc.ShufflerPoolSize)
	sc.ShufflerPoolSize = min(10, sc.ShufflerPoolSize)
	if sc.Lab == nil {
		return errs.NewFatal("shufflelab is required")
	}
	return nil
}
