package buf

import (
	"github.com/zintix-labs/shufflelab/profile"
)

const capPermGrow int = 64 // 重配置時的餘裕容量

// ShuffleResult 保存一次完整洗牌的結果。
//
// 結構設計為重用緩衝：模擬時同一個實體跑數萬輪，
// Reset 只歸零邏輯長度，不釋放已配置的切片。
type ShuffleResult struct {
	FeedName   string               // 清單名稱
	PID        profile.PID          // 設定檔Id
	Transform  profile.TransformKey // 對應權重轉換
	N          int                  // 本次清單長度
	Inequality float64              // 實際生效的控制參數
	Strategy   profile.Strategy     // 實際使用的抽樣策略
	Perm       []int                // 排列：位置 → 原始索引
	Weights    []float64            // 本次使用的權重 (診斷用，可能為空)
	State      ShuffleState         // 洗牌前後的 PRNG 快照，由 Shuffler 填入

	Ext ExtendResult // 轉換的擴充診斷資料
}

// ShuffleState 保存單次洗牌的重放資訊。
// Start 快照搭配相同請求可完整重放本次結果，After 快照供審計串接下一次。
type ShuffleState struct {
	StartCoreSnap []byte
	AfterCoreSnap []byte
}

// NewShuffleResult 建立指定設定檔的 ShuffleResult 實體，並預先配置基本容量。
func NewShuffleResult(fp *profile.FeedProfile) *ShuffleResult {
	n := fp.Items.Count
	sr := &ShuffleResult{
		FeedName:   fp.FeedName,
		PID:        profile.PID(fp.FeedID),
		Transform:  fp.Transform,
		N:          0,
		Inequality: 0,
		Strategy:   profile.StrategyAuto,
		Perm:       make([]int, 0, n+capPermGrow),
		Weights:    make([]float64, 0, n+capPermGrow),
	}
	return sr
}

// PermBuf 回傳長度 n 的排列緩衝，容量不足時重新配置。
// 回傳切片內容未初始化，由抽樣策略負責完整覆寫。
func (s *ShuffleResult) PermBuf(n int) []int {
	if cap(s.Perm) < n {
		s.Perm = make([]int, n, n+capPermGrow)
	}
	s.Perm = s.Perm[:n]
	return s.Perm
}

// WeightsBuf 回傳長度 n 的權重緩衝，容量不足時重新配置。
func (s *ShuffleResult) WeightsBuf(n int) []float64 {
	if cap(s.Weights) < n {
		s.Weights = make([]float64, n, n+capPermGrow)
	}
	s.Weights = s.Weights[:n]
	return s.Weights
}

// Reset 重置累積資料，保留已配置的內部切片容量。
func (s *ShuffleResult) Reset() {
	s.N = 0
	s.Inequality = 0
	s.Strategy = profile.StrategyAuto
	s.Perm = s.Perm[:0]
	s.Weights = s.Weights[:0]
	s.State = ShuffleState{}
	if s.Ext != nil {
		s.Ext.Reset()
	}
}

// ExtendResult 定義了所有轉換擴充資訊必須具備的行為
//
// 這強制規範開發者實作 Reset 和 Snapshot 機制，確保 Sim/Server 模式正確運作。
type ExtendResult interface {
	// Reset 需要做到「完全清空到初始狀態」：
	//	- 由轉換自行決定要不要重用記憶體，以避免 GC 負擔。
	//	- 每次洗牌開始時經由 ShuffleResult.Reset 觸發一次，
	//	  轉換在 Weights 內重新填值前可再自行呼叫。
	//	- 保證下一次 Snapshot 不會帶著上一輪遺留狀態。
	//	- 是否依據 isSim 做額外優化（例如跳過清空內容），完全由轉換實作者自行決定。
	Reset()
	// Snapshot 建立快照
	//  - 呼叫端（Shuffler/DTO）一律只呼叫 Snapshot，不需要知道 isSim 的存在。
	//  - 轉換實作者可以在內部判斷 isSim 以回傳 nil (觸發 JSON omitempty)，省去深拷貝 CPU 成本與流量。
	//  - 回傳型別使用 any 是為了相容 JSON 序列化，避免強轉型。
	//  - 建議：總是先考量並實作深拷貝方式以確保併發安全；Sim 模式可依需求回傳 nil 或輕量資料。
	Snapshot() any
}

// NoExtend 是「無附加資料」的佔位型別：
// - 允許轉換以最小成本完成 ExtendResult 註冊，避免到處 nil 判斷。
// - Reset/Snapshot 皆為空操作；行為可預期且 thread-safe。
// - 透過指標型別滿足泛型註冊約束，與有實際資料的 extend 接口一致。
type NoExtend struct{}

// Reset 是 NoExtend 的空實作：
//   - 不需要任何狀態回收，因為 NoExtend 不持有資料。
//   - 保留方法是為了滿足介面契約，讓呼叫端不用分支處理。
func (e *NoExtend) Reset() {}

// Snapshot 是 NoExtend 的空實作：
//   - 永遠回傳 nil，這樣 JSON 輸出時該欄位會被完全省略 (omitempty)。
//   - 呼叫端永遠只呼叫 Snapshot；是否有 isSim 優化由具體轉換 extend 決定，這裡保持單純。
func (e *NoExtend) Snapshot() any {
	return nil
}
