package v1

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/server/httperr"
	"github.com/zintix-labs/shufflelab/stats"
)

type SimHandler struct {
	Lab *shufflelab.ShuffleLab
}

func NewSimHandler(lab *shufflelab.ShuffleLab) (*SimHandler, error) {
	return &SimHandler{Lab: lab}, nil
}

func (sh *SimHandler) Sim(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimRequestBody struct {
		FID    profile.PID `json:"fid"`
		Trials int         `json:"trials"`
		Seed   *int64      `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type SimResponse struct {
		Stats    *stats.LandingReport `json:"stats"`
		UsedTime int64                `json:"used_ms"`
	}
	// ---
	req := new(SimRequestBody)
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if q.Method == http.MethodGet {
		// fid
		if s := q.URL.Query().Get("fid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("fid must be non-negative integer"))
				return
			}
			req.FID = profile.PID(u)
		} else {
			// 直接空值
			httperr.Errs(w, errs.NewWarn("fid is required"))
			return
		}

		// trials
		if t := q.URL.Query().Get("trials"); t != "" {
			u, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("trials must be integer"))
				return
			}
			req.Trials = int(u)
		} else {
			httperr.Errs(w, errs.NewWarn("trials is required"))
			return
		}

		// seed
		if s := q.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	}
	if q.Method == http.MethodPost {
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務檢驗
	_, ok := sh.Lab.EntryById(req.FID)
	if !ok {
		httperr.Errs(w, errs.NewWarn("fid not found"))
		return
	}
	if req.Trials < 1 || req.Trials > 1000000 {
		httperr.Errs(w, errs.NewWarn("trials must be between 1 to 1,000,000"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	sim, err := sh.Lab.NewSimulatorWithSeed(req.FID, *req.Seed)
	if err != nil {
		// 這裡的錯誤是來自shufflelab 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.FID)))
		return
	}
	st, used, err := sim.Sim(req.Trials, false)
	if err != nil {
		// 這裡的錯誤來自simulator 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	resp := SimResponse{
		Stats:    st,
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (sh *SimHandler) SimSeeds(w http.ResponseWriter, r *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimSeedsRequestBody struct {
		FID     profile.PID `json:"fid"`
		Streams int         `json:"streams"`
		Trials  int         `json:"trials"`
		Seed    *int64      `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type SimSeedsResponse struct {
		Stats     *stats.LandingReport  `json:"stats"`
		Estimator *stats.EstimatorSeeds `json:"est"`
		UsedTime  int64                 `json:"used_ms"`
	}
	// ---
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := new(SimSeedsRequestBody)
	if r.Method == http.MethodGet {
		fid := r.URL.Query().Get("fid")
		streamsStr := r.URL.Query().Get("streams")
		trialsStr := r.URL.Query().Get("trials")

		// fid
		if fid != "" {
			u, err := strconv.ParseUint(fid, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("fid must be non-negative integer"))
				return
			}
			req.FID = profile.PID(u)
		} else {
			httperr.Errs(w, errs.NewWarn("fid is required"))
			return
		}

		// streams
		if streamsStr != "" {
			streams, err := strconv.Atoi(streamsStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("streams must be integer"))
				return
			}
			req.Streams = streams
		} else {
			httperr.Errs(w, errs.NewWarn("streams is required"))
			return
		}

		// trials
		if trialsStr != "" {
			trials, err := strconv.Atoi(trialsStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("trials must be integer"))
				return
			}
			req.Trials = trials
		} else {
			httperr.Errs(w, errs.NewWarn("trials is required"))
			return
		}

		// seed
		if s := r.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	}
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務邏輯判斷
	if _, ok := sh.Lab.EntryById(req.FID); !ok {
		httperr.Errs(w, errs.NewWarn("fid not found"))
		return
	}
	// 每條種子流持有一個獨立紀錄員，落點矩陣讓記憶體隨 n^2 放大，上限抓保守
	if req.Streams < 1 || req.Streams > 1000 {
		httperr.Errs(w, errs.NewWarn("streams must be between 1 and 1,000"))
		return
	}
	if req.Trials < 1 || req.Trials > 15000 {
		httperr.Errs(w, errs.NewWarn("trials must be between 1 and 15,000"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	// 取得sim
	sim, err := sh.Lab.NewSimulatorWithSeed(req.FID, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.FID)))
		return
	}
	st, est, used, err := sim.SimSeeds(4, req.Streams, req.Trials, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("simulator err: %d", req.FID)))
		return
	}
	resp := &SimSeedsResponse{
		Stats:     st,
		Estimator: est,
		UsedTime:  used.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
