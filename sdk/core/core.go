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

package core

import "math"

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 為什麼要求同時提供 4 個方法（Uint64 / Float64 / UintN / IntN），而不是只要求 Uint64？
//
// 1) 允許實作針對 32-bit / 64-bit 平台做最佳化
//   - 有些 PRNG 的「原生輸出寬度」是 32-bit（例如以 uint32 為核心），直接產生 uint32/uint
//     可能更快、更少指令；也有 64-bit PRNG 在 64-bit 平台上直接提供 Uint64/UintN 更自然。
//   - 若合約只要求 Uint64，所有實作都被迫走「先產生 uint64 再轉換/裁切」的路徑，
//     會把 32-bit 友善的 PRNG 退化成比較慢的寫法。
//   - 不同 PRNG 對 bounded 生成可能有更快/更正確的實作，把 IntN/UintN 交由 PRNG
//     自己實作，能讓每個 PRNG 用最合適的 bounded 策略。
//
// 2) Float64 的精度與生成方式應由 PRNG 決定
//   - Float64 通常希望使用 53-bit mantissa 來生成 [0,1)；但有些實作只提供 32-bit 精度
//     或有更快的路徑。讓 PRNG 自己提供 Float64，可以明確表達精度與效能取捨。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 以指定 seed 建立新的 PRNG。
	//
	// 合約（很重要）：在同一個實作與同一個版本下，New(seed) 必須是「決定性」的——
	// 相同的 seed 必須產生相同的初始內部狀態與輸出序列。
	//
	// 為什麼只保留 New？
	//   - ShuffleLab 需要可重現（審計/回放/併發模擬的多 Shuffler 派生）。
	//   - seed 的生命週期由 ShuffleLab 統一管理：外部未提供時由 Lab 產生並保存 baseSeed，
	//     後續所有 Shuffler/Sim 皆由 baseSeed 以固定算法派生子 seed。
	//   - 因此內部永遠不需要「不帶 seed 的 New()」，避免行為不一致與難以重現。
	New(int64) PRNG
}

// DefaultPRNG 是預設的 PRNGFactory，產出 PCG64。
type DefaultPRNG struct{}

// New 滿足合約
func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// PCG32Factory 產出 32-bit 輸出的 PCG32，提供給需要較小狀態或
// 想比對不同核心行為的場景（cmd/run 的 -rng 旗標）。
type PCG32Factory struct{}

func (f *PCG32Factory) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

// Core 封裝 PRNG，並提供常用取樣與工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// ExpFloat64 回傳均值為 1 的指數分布亂數（inverse CDF 法）。
// 加權洗牌的 exponential race 需要此分布：score = Exp(1) / weight。
func (c *Core) ExpFloat64() float64 {
	// Float64 落在 [0,1)，因此 1-u 落在 (0,1]，Log 不會取到 0。
	return -math.Log(1 - c.Float64())
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1
// 熱路徑中只使用哨兵值回傳
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	idx := c.IntN(len(src))
	return src[idx]
}

// ShuffleInts 使用 Fisher-Yates (亦稱 Knuth Shuffle) 演算法
// 對[]int進行「就地 (In-place)」隨機重排。
//
// 演算法特性：
//
//  1. 公平性 (Unbiased)：
//     所有 N! 種排列出現的機率嚴格相等 (1/N!)，
//     避免 "Naive Shuffle" (每個位置隨機跟任意位置交換) 的機率偏差。
//
//  2. 效能 (High Performance)：
//     - 時間複雜度：O(N)，單次線性掃描。
//     - 空間複雜度：O(1)，就地交換，零配置 (Zero Allocation)。
func (c *Core) ShuffleInts(src []int) {
	if len(src) <= 1 {
		return
	}

	for i := len(src) - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		src[i], src[j] = src[j], src[i]
	}
}

// PermInto 把 [0,n) 的均勻隨機排列寫入 dst 並回傳。
// dst 容量不足時重新配置；容量足夠時零配置，供熱路徑重用 buffer。
func (c *Core) PermInto(dst []int, n int) []int {
	if cap(dst) < n {
		dst = make([]int, n)
	} else {
		dst = dst[:n]
	}
	for i := range dst {
		dst[i] = i
	}
	c.ShuffleInts(dst)
	return dst
}
