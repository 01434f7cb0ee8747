package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zintix-labs/shufflelab/recorder"
	"github.com/zintix-labs/shufflelab/sdk/buf"
)

type DistStat struct {
	// 清單描述
	FeedName   string  `json:"feed_name"`
	N          int     `json:"n"`
	TopK       int     `json:"top_k"`
	Inequality float64 `json:"inequality"`
	// 外部洗牌結果序列 每筆都是 位置→原始索引 的排列
	Perms [][]int `json:"perms"`
}

func Stat(w http.ResponseWriter, r *http.Request) {
	// Post方法限定
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 嘗試解析
	dst := new(DistStat)
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20) // 32MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 對齊試行數
	trials := len(dst.Perms)
	if trials < 1 {
		http.Error(w, "perms must not be empty", http.StatusBadRequest)
		return
	}

	// 參數檢驗交給紀錄員的建構式
	rec, err := recorder.NewLandingRecorder(dst.FeedName, 0, dst.N, dst.TopK, dst.Inequality)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Record 假設排列合法，外部資料必須先逐筆驗證
	seen := make([]bool, dst.N)
	for i, p := range dst.Perms {
		if len(p) != dst.N {
			http.Error(w, fmt.Sprintf("perms[%d]: length %d != n %d", i, len(p), dst.N), http.StatusBadRequest)
			return
		}
		for j := range seen {
			seen[j] = false
		}
		for _, orig := range p {
			if orig < 0 || orig >= dst.N || seen[orig] {
				http.Error(w, fmt.Sprintf("perms[%d]: not a permutation of 0..%d", i, dst.N-1), http.StatusBadRequest)
				return
			}
			seen[orig] = true
		}
	}

	// 繞過New方法，自己構造 ShuffleResult (New需要完整設定檔)
	sr := &buf.ShuffleResult{
		FeedName:   dst.FeedName,
		N:          dst.N,
		Inequality: dst.Inequality,
	}
	for _, p := range dst.Perms {
		sr.Perm = p
		// 紀錄
		rec.Record(sr)
	}
	st := rec.Done()
	st.Done()
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
}
