package buf

import (
	"github.com/zintix-labs/shufflelab/profile"
)

// ShuffleRequest 是洗牌引擎的內部請求。
//
// wire 層的解碼與契約檢查在 dto 完成，
// 這裡只承載引擎與路由實際需要的最終值，讓模擬器能以零配置成本重用。
type ShuffleRequest struct {
	UID      string      // 呼叫端識別碼，記錄與審計用
	FeedName string      // 目標清單名稱，runtime 以此路由
	FeedID   profile.PID // 設定檔編號
	N        int         // 清單長度
	// Inequality 為請求覆寫的控制參數，HasInequality 為 true 時生效，
	// false 時採用設定檔預設。兩個欄位拆開是為了讓「明確傳 0」與
	// 「未提供」有不同語意。
	Inequality    float64
	HasInequality bool
	StartSnap     []byte // 指定起始 RNG 快照 (重放用)，nil 表示延續當前狀態
}

// Reset 清空請求內容，保留結構重用。
func (r *ShuffleRequest) Reset() {
	r.UID = ""
	r.FeedName = ""
	r.FeedID = 0
	r.N = 0
	r.Inequality = 0
	r.HasInequality = false
	r.StartSnap = nil
}
