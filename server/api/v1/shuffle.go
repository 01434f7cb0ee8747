package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/server/httperr"
	"github.com/zintix-labs/shufflelab/server/svrcfg"
)

func (c *ShuffleHandler) Shuffle(w http.ResponseWriter, q *http.Request) {
	// 請求方法、結構體校驗
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := dto.DecodeShuffleRequest(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// 請求解析完成，設置超時 context
	ctx := q.Context()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 開始 Shuffle
	result, err := c.rt.Shuffle(ctx, req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		httperr.Errs(w, err)
		return
	}
	// 單趟直接編碼到 ResponseWriter：省一次記憶體拷貝，
	// 代價是中途編碼失敗時 header 已送出。結果 DTO 都是純資料，接受這個 tradeoff。
}

// ============================================================
// ** ShuffleHandler **
// ============================================================

type ShuffleHandler struct {
	rt *shufflelab.ShuffleRuntime
}

func NewShuffleHandler(sCfg *svrcfg.SvrCfg) (*ShuffleHandler, error) {
	rt, err := sCfg.Lab.BuildRuntime(sCfg.ShufflerPoolSize)
	if err != nil {
		return nil, errs.Wrap(err, "build shuffle handler error")
	}
	return &ShuffleHandler{rt: rt}, nil
}
