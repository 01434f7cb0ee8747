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

package recorder

import (
	"fmt"
	"math"

	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/calc"
	"github.com/zintix-labs/shufflelab/stats"
)

// 完整落點矩陣 (n x n) 只在清單長度不超過此值時紀錄，
// 超過時 Counts 保持 nil，其餘統計照常累積
const maxLandMatrixN int = 256

// LandingRecorder 洗牌紀錄員
//
// LandingRecorder 負責紀錄洗牌結果，並透過Done輸出統計報表
type LandingRecorder struct {
	FeedName   string
	FeedID     profile.PID
	N          int
	TopK       int
	Inequality float64
	Basic      *BasicRecord
	Land       *LandRecord
	Rank       *RankRecord

	dispBuf []int
	invWork []int
	invTmp  []int
}

// BasicRecord 基本洗牌資料紀錄
type BasicRecord struct {
	Trials         int
	TopStay        int
	TopKRetained   int
	IdentityTrials int
}

// LandRecord 落點分布統計
//
// 紀錄時紀錄int資訊
type LandRecord struct {
	Bucket       *stats.LandBucket
	Counts       []int // 扁平 n x n 矩陣，原始名次 orig 落在位置 pos 累積在 Counts[orig*n+pos]
	FirstCollect []int
	DispCollect  []int
}

// RankRecord 秩序指標累積
type RankRecord struct {
	RhoSum    float64
	RhoSqSum  float64 // 平方和
	TauSum    float64
	TauSqSum  float64 // 平方和
	DispSum   int
	DispSqSum int // 平方和
	MaxShift  int
}

func NewLandingRecorder(name string, id profile.PID, n int, topK int, inequality float64) (*LandingRecorder, error) {
	s := new(LandingRecorder)

	if n <= 0 {
		return s, errs.NewFatal(fmt.Sprintf("items count err %d", n))
	}

	if topK <= 0 || topK > n {
		return s, errs.NewFatal(fmt.Sprintf("topk err %d", topK))
	}

	if math.IsNaN(inequality) || math.IsInf(inequality, 0) || inequality < 0 {
		return s, errs.NewFatal(fmt.Sprintf("inequality err %v", inequality))
	}
	// 通過valid
	s.FeedName = name
	s.FeedID = id
	s.N = n
	s.TopK = topK
	s.Inequality = inequality
	s.Basic = new(BasicRecord)
	s.Land = newLandRecord(n)
	s.Rank = new(RankRecord)
	s.dispBuf = make([]int, n)
	s.invWork = make([]int, n)
	s.invTmp = make([]int, n)

	return s, nil
}

func MergeLandingRecorder(r []*LandingRecorder) (*LandingRecorder, error) {
	r0 := r[0]
	s, err := NewLandingRecorder(r0.FeedName, r0.FeedID, r0.N, r0.TopK, r0.Inequality)
	if err != nil {
		return s, err
	}
	for _, v := range r {
		if v.FeedName != r0.FeedName {
			return s, errs.NewFatal("merge landing record err : different feed name")
		}
		if v.N != r0.N {
			return s, errs.NewFatal("merge landing record err : different items count")
		}
		if v.TopK != r0.TopK {
			return s, errs.NewFatal("merge landing record err : different topk")
		}
		if v.Inequality != r0.Inequality {
			return s, errs.NewFatal("merge landing record err : different inequality")
		}
		s.Basic.Trials += v.Basic.Trials
		s.Basic.TopStay += v.Basic.TopStay
		s.Basic.TopKRetained += v.Basic.TopKRetained
		s.Basic.IdentityTrials += v.Basic.IdentityTrials

		s.Rank.RhoSum += v.Rank.RhoSum
		s.Rank.RhoSqSum += v.Rank.RhoSqSum
		s.Rank.TauSum += v.Rank.TauSum
		s.Rank.TauSqSum += v.Rank.TauSqSum
		s.Rank.DispSum += v.Rank.DispSum
		s.Rank.DispSqSum += v.Rank.DispSqSum
		if v.Rank.MaxShift > s.Rank.MaxShift {
			s.Rank.MaxShift = v.Rank.MaxShift
		}

		// 整合Land
		for i := range len(v.Land.Counts) {
			s.Land.Counts[i] += v.Land.Counts[i]
		}
		for i := range len(v.Land.FirstCollect) {
			s.Land.FirstCollect[i] += v.Land.FirstCollect[i]
		}
		for i := range len(v.Land.DispCollect) {
			s.Land.DispCollect[i] += v.Land.DispCollect[i]
		}
	}
	return s, nil
}

// Record 以單次 ShuffleResult 更新統計
//
// 呼叫端保證 sr.Perm 是長度與本紀錄員相同的合法排列
func (s *LandingRecorder) Record(sr *buf.ShuffleResult) {
	s.recordBasic(sr) // Basic
	s.recordLand(sr)  // Land
	s.recordRank(sr)  // Rank
}

func (s *LandingRecorder) Done() *stats.LandingReport {
	report := &stats.LandingReport{
		Summary: &stats.SummaryReport{
			FeedName:       s.FeedName,
			FeedID:         s.FeedID,
			N:              s.N,
			Inequality:     s.Inequality,
			TopK:           s.TopK,
			Trials:         s.Basic.Trials,
			TopStay:        s.Basic.TopStay,
			TopKRetained:   s.Basic.TopKRetained,
			IdentityTrials: s.Basic.IdentityTrials,
			MaxShift:       s.Rank.MaxShift,
		},
		Rank: &stats.RankReport{
			RhoSum:    s.Rank.RhoSum,
			RhoSqSum:  s.Rank.RhoSqSum,
			TauSum:    s.Rank.TauSum,
			TauSqSum:  s.Rank.TauSqSum,
			DispSum:   s.Rank.DispSum,
			DispSqSum: s.Rank.DispSqSum,
		},
		Dist: &stats.DistReport{
			LandBucket:  stats.Buckets.DispBucketStr(),
			DispCollect: s.Land.DispCollect,
			DispDist:    nil,
		},
		Land: &stats.LandReport{
			N:            s.N,
			Counts:       s.Land.Counts,
			FirstCollect: s.Land.FirstCollect,
			FirstDist:    nil,
		},
	}

	length := len(report.Dist.LandBucket)

	distF := make([]float64, length)
	firstF := make([]float64, s.N)
	tf := float64(report.Summary.Trials)
	if tf > 0 {
		for i := range length {
			distF[i] = float64(report.Dist.DispCollect[i]) / tf
		}
		for i := range s.N {
			firstF[i] = float64(report.Land.FirstCollect[i]) / tf
		}
	}

	report.Dist.DispDist = distF
	report.Land.FirstDist = firstF

	return report
}

func (s *LandingRecorder) recordBasic(res *buf.ShuffleResult) {
	p := res.Perm

	// Basic
	s.Basic.Trials++
	if p[0] == 0 {
		s.Basic.TopStay++
	}
	s.Basic.TopKRetained += calc.TopKRetained(p, s.TopK)

	ident := true
	for pos, orig := range p {
		if pos != orig {
			ident = false
			break
		}
	}
	if ident {
		s.Basic.IdentityTrials++
	}
}

func (s *LandingRecorder) recordLand(res *buf.ShuffleResult) {
	d := s.Land
	p := res.Perm
	n := s.N

	if d.Counts != nil {
		for pos, orig := range p {
			d.Counts[orig*n+pos]++
		}
	}
	d.FirstCollect[p[0]]++
	d.DispCollect[d.Bucket.Index(calc.TotalDisplacement(p))]++
}

func (s *LandingRecorder) recordRank(res *buf.ShuffleResult) {
	r := s.Rank
	p := res.Perm
	n := len(p)

	s.dispBuf = calc.DisplacementInto(p, s.dispBuf)

	total := 0
	sqSum := 0
	for _, d := range s.dispBuf {
		total += d
		sqSum += d * d
		if d > r.MaxShift {
			r.MaxShift = d
		}
	}
	r.DispSum += total
	r.DispSqSum += total * total

	if n > 1 {
		// Spearman rho 閉式解，d 為各項目的名次位移
		nf := float64(n)
		rho := 1.0 - 6.0*float64(sqSum)/(nf*(nf*nf-1.0))
		r.RhoSum += rho
		r.RhoSqSum += rho * rho

		inv := calc.InversionsInto(p, s.invWork, s.invTmp)
		tau := 1.0 - 4.0*float64(inv)/(nf*(nf-1.0))
		r.TauSum += tau
		r.TauSqSum += tau * tau
	} else {
		// 單一項目視為完全保序
		r.RhoSum += 1.0
		r.RhoSqSum += 1.0
		r.TauSum += 1.0
		r.TauSqSum += 1.0
	}
}

func newLandRecord(n int) *LandRecord {
	d := new(LandRecord)
	d.Bucket = stats.Buckets.GetBucketByN(n)
	if n <= maxLandMatrixN {
		d.Counts = make([]int, n*n)
	}
	d.FirstCollect = make([]int, n)
	d.DispCollect = make([]int, len(stats.Buckets.DispBucketStr()))
	return d
}
