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

package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// 種子流離散度評估
type EstimatorSeeds struct {
	Streams   int
	StayStat  SpreadStat
	RankStat  RankSpread
	PooledPos PooledPerc
}

// SpreadStat 單一指標跨種子流的分位數敘事
type SpreadStat struct {
	Median PointStat // 各流指標的中位數
	P10    PointStat
	P33    PointStat
	P67    PointStat
	P90    PointStat
}

// RankSpread 秩相關指標跨種子流的分位數敘事
type RankSpread struct {
	RhoMedian PointStat
	RhoP10    PointStat
	RhoP90    PointStat
	TauMedian PointStat
	TauP10    PointStat
	TauP90    PointStat
}

// 用合併值視角看各流: 有多少比例的流落在合併估計值以下
//
// 貼近 50% 代表合併值沒有被少數極端流拖走
type PooledPerc struct {
	StayBelow  PointStat
	RhoBelow   PointStat
	ShiftBelow PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// ============================================================
// ** 對外 : 種子流離散度評估 **
// ============================================================

// EstimatorSeedSpread 種子流離散度評估
//
// 1. Stay 敘事 : 描述各流首位保留率的分布
//
// 2. Rank 敘事 : 描述各流平均秩相關 (rho / tau) 的分布
//
// 3. Pooled 敘事 : 描述合併估計值落在各流分布中的位置
func EstimatorSeedSpread(sts []*LandingReport) *EstimatorSeeds {
	// 0. 防禦：空輸入
	n := len(sts)
	out := &EstimatorSeeds{Streams: n}
	if n == 0 {
		return out
	}

	// ------------------------------------------------------------
	// 1) Stay 敘事：收集每流首位保留率並做分位/CI
	// ------------------------------------------------------------
	stay := make([]float64, n)
	rho := make([]float64, n)
	tau := make([]float64, n)
	shift := make([]float64, n)
	for i, s := range sts {
		stay[i] = s.StayRate()
		rho[i] = s.MeanRho()
		tau[i] = s.MeanTau()
		shift[i] = s.MeanShift()
	}

	// 中位數 (點估計 + 95% CI)
	medHat := quantilePoint(stay, 0.5)
	medLo, medHi := quantileCI(stay, 0.5, 0.95)

	// P10, P33, P67, P90 (點估計 + 95% CI)
	p10Hat := quantilePoint(stay, 0.10)
	p10Lo, p10Hi := quantileCI(stay, 0.10, 0.95)

	p33Hat := quantilePoint(stay, 1.0/3.0)
	p33Lo, p33Hi := quantileCI(stay, 1.0/3.0, 0.95)

	p67Hat := quantilePoint(stay, 2.0/3.0)
	p67Lo, p67Hi := quantileCI(stay, 2.0/3.0, 0.95)

	p90Hat := quantilePoint(stay, 0.90)
	p90Lo, p90Hi := quantileCI(stay, 0.90, 0.95)

	out.StayStat = SpreadStat{
		Median: PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
		P10:    PointStat{Hat: p10Hat, CI: CI{Lo: p10Lo, Hi: p10Hi}},
		P33:    PointStat{Hat: p33Hat, CI: CI{Lo: p33Lo, Hi: p33Hi}},
		P67:    PointStat{Hat: p67Hat, CI: CI{Lo: p67Lo, Hi: p67Hi}},
		P90:    PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
	}

	// ------------------------------------------------------------
	// 2) Rank 敘事：rho 與 tau 的中位數與兩端分位
	// ------------------------------------------------------------
	rhoMedHat := quantilePoint(rho, 0.5)
	rhoMedLo, rhoMedHi := quantileCI(rho, 0.5, 0.95)
	rhoP10Hat := quantilePoint(rho, 0.10)
	rhoP10Lo, rhoP10Hi := quantileCI(rho, 0.10, 0.95)
	rhoP90Hat := quantilePoint(rho, 0.90)
	rhoP90Lo, rhoP90Hi := quantileCI(rho, 0.90, 0.95)

	tauMedHat := quantilePoint(tau, 0.5)
	tauMedLo, tauMedHi := quantileCI(tau, 0.5, 0.95)
	tauP10Hat := quantilePoint(tau, 0.10)
	tauP10Lo, tauP10Hi := quantileCI(tau, 0.10, 0.95)
	tauP90Hat := quantilePoint(tau, 0.90)
	tauP90Lo, tauP90Hi := quantileCI(tau, 0.90, 0.95)

	out.RankStat = RankSpread{
		RhoMedian: PointStat{Hat: rhoMedHat, CI: CI{Lo: rhoMedLo, Hi: rhoMedHi}},
		RhoP10:    PointStat{Hat: rhoP10Hat, CI: CI{Lo: rhoP10Lo, Hi: rhoP10Hi}},
		RhoP90:    PointStat{Hat: rhoP90Hat, CI: CI{Lo: rhoP90Lo, Hi: rhoP90Hi}},
		TauMedian: PointStat{Hat: tauMedHat, CI: CI{Lo: tauMedLo, Hi: tauMedHi}},
		TauP10:    PointStat{Hat: tauP10Hat, CI: CI{Lo: tauP10Lo, Hi: tauP10Hi}},
		TauP90:    PointStat{Hat: tauP90Hat, CI: CI{Lo: tauP90Lo, Hi: tauP90Hi}},
	}

	// ------------------------------------------------------------
	// 3) Pooled 敘事：合併估計值在各流分布中的位置（CP 95% CI）
	// ------------------------------------------------------------
	var stayK, trialsSum int
	var rhoSum, shiftSum float64
	for _, s := range sts {
		stayK += s.Summary.TopStay
		trialsSum += s.Summary.Trials
		rhoSum += s.Rank.RhoSum
		if s.Summary.N > 0 {
			shiftSum += float64(s.Rank.DispSum) / float64(s.Summary.N)
		}
	}
	if trialsSum > 0 {
		pooledStay := float64(stayK) / float64(trialsSum)
		pooledRho := rhoSum / float64(trialsSum)
		pooledShift := shiftSum / float64(trialsSum)

		stayHat, stayCI := percentileCIForValue(stay, pooledStay, 0.95)
		rhoHat, rhoCI := percentileCIForValue(rho, pooledRho, 0.95)
		shiftHat, shiftCI := percentileCIForValue(shift, pooledShift, 0.95)

		out.PooledPos = PooledPerc{
			StayBelow:  PointStat{Hat: stayHat, CI: stayCI},
			RhoBelow:   PointStat{Hat: rhoHat, CI: rhoCI},
			ShiftBelow: PointStat{Hat: shiftHat, CI: shiftCI},
		}
	}

	return out
}

// ============================================================
// ** 對外 : 均勻性檢定 **
// ============================================================

// ChiSquareUniform 對落點計數做均勻性卡方檢定
//
// 自由度為 len(counts)-1。回傳卡方統計量與 p-value，
// p-value 極小代表觀測分布偏離均勻假設。
func ChiSquareUniform(counts []int) (chi2 float64, pValue float64) {
	k := len(counts)
	if k < 2 {
		return 0, 1
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0, 1
	}
	expected := float64(total) / float64(k)
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	dist := distuv.ChiSquared{K: float64(k - 1)}
	return chi2, dist.Survival(chi2)
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func (est *EstimatorSeeds) Out() {
	// 1) Top-Stay Rate (per seed stream)
	fmt.Println("=== Top-Stay Rate (per seed stream) ===")
	stayKeys := []string{
		"Median",
		"P10",
		"P33",
		"P67",
		"P90",
	}
	stayMsg := map[string]string{
		"Median": fmtHatCIpct01(est.StayStat.Median.Hat, est.StayStat.Median.CI),
		"P10":    fmtHatCIpct01(est.StayStat.P10.Hat, est.StayStat.P10.CI),
		"P33":    fmtHatCIpct01(est.StayStat.P33.Hat, est.StayStat.P33.CI),
		"P67":    fmtHatCIpct01(est.StayStat.P67.Hat, est.StayStat.P67.CI),
		"P90":    fmtHatCIpct01(est.StayStat.P90.Hat, est.StayStat.P90.CI),
	}
	printTable("Top-Stay Rate (per seed stream)", stayKeys, stayMsg)

	// 2) Rank correlation per seed stream
	fmt.Println("\n=== Rank Correlation (per seed stream) ===")
	rankKeys := []string{"Rho Median", "Rho P10", "Rho P90", "Tau Median", "Tau P10", "Tau P90"}
	rankMsg := map[string]string{
		"Rho Median": fmtHatCI(est.RankStat.RhoMedian.Hat, est.RankStat.RhoMedian.CI),
		"Rho P10":    fmtHatCI(est.RankStat.RhoP10.Hat, est.RankStat.RhoP10.CI),
		"Rho P90":    fmtHatCI(est.RankStat.RhoP90.Hat, est.RankStat.RhoP90.CI),
		"Tau Median": fmtHatCI(est.RankStat.TauMedian.Hat, est.RankStat.TauMedian.CI),
		"Tau P10":    fmtHatCI(est.RankStat.TauP10.Hat, est.RankStat.TauP10.CI),
		"Tau P90":    fmtHatCI(est.RankStat.TauP90.Hat, est.RankStat.TauP90.CI),
	}
	printTable("Rank Correlation (per seed stream)", rankKeys, rankMsg)

	// 3) Pooled estimate position
	fmt.Println("\n=== Pooled Estimate Position ===")
	pooledKeys := []string{"Stay ≤ pooled", "Rho ≤ pooled", "Shift ≤ pooled"}
	pooledMsg := map[string]string{
		"Stay ≤ pooled":  fmtHatCIpct01(est.PooledPos.StayBelow.Hat, est.PooledPos.StayBelow.CI),
		"Rho ≤ pooled":   fmtHatCIpct01(est.PooledPos.RhoBelow.Hat, est.PooledPos.RhoBelow.CI),
		"Shift ≤ pooled": fmtHatCIpct01(est.PooledPos.ShiftBelow.Hat, est.PooledPos.ShiftBelow.CI),
	}
	printTable("Pooled Estimate Position", pooledKeys, pooledMsg)
}

func printTable(title string, keys []string, msg map[string]string) {
	fmt.Println(title)
	maxKeyLen := 0
	for _, k := range keys {
		if len(k) > maxKeyLen {
			maxKeyLen = len(k)
		}
	}
	for _, k := range keys {
		fmt.Printf("  %-*s : %s\n", maxKeyLen, k, msg[k])
	}
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(hat float64, ci CI) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(hat), fmtPct01(ci.Lo), fmtPct01(ci.Hi))
}

func fmtHatCI(hat float64, ci CI) string {
	return fmt.Sprintf("%.4f [%.4f, %.4f]", hat, ci.Lo, ci.Hi)
}
