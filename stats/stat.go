package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/shufflelab/profile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// LandingReport 洗牌落點統計報告
type LandingReport struct {
	Summary *SummaryReport `json:"Summary"`
	Rank    *RankReport    `json:"Rank"`
	Dist    *DistReport    `json:"Dist"`
	Land    *LandReport    `json:"Land,omitzero"`
	isDone  bool
}

type SummaryReport struct {
	FeedName   string      `json:"FeedName"`
	FeedID     profile.PID `json:"FeedID"`
	N          int         `json:"N"`
	Inequality float64     `json:"Inequality"`
	TopK       int         `json:"TopK"`
	Trials     int         `json:"Trials"`

	TopStay        int     `json:"TopStay"` // 首位項目留在首位的次數
	TopStayRate    float64 `json:"TopStayRate"`
	TopStayCI      CI      `json:"TopStayCI"`
	TopKRetained   int     `json:"TopKRetained"` // 各筆「前K留在前K」項目數的總和
	TopKRetention  float64 `json:"TopKRetention"`
	IdentityTrials int     `json:"IdentityTrials"` // 完全沒有移動的筆數
	MoveRate       float64 `json:"MoveRate"`

	MeanShift float64 `json:"MeanShift"` // 單一項目的平均位移量
	ShiftStd  float64 `json:"ShiftStd"`
	MaxShift  int     `json:"MaxShift"`

	RhoMean float64 `json:"RhoMean"`
	RhoStd  float64 `json:"RhoStd"`
	TauMean float64 `json:"TauMean"`
	TauStd  float64 `json:"TauStd"`

	// 首位落點的均勻性檢定，僅在 Inequality = 0 時填入，其餘保持零值
	UniformChi2   float64 `json:"UniformChi2"`
	UniformPValue float64 `json:"UniformPValue"`
}

// RankReport 秩相關與位移的累積和
//
// 為了紀錄性能僅累積和與平方和，紀錄完成後由 Done() 整理填入 Summary
type RankReport struct {
	RhoSum    float64 `json:"RhoSum"`
	RhoSqSum  float64 `json:"RhoSqSum"` // 平方和
	TauSum    float64 `json:"TauSum"`
	TauSqSum  float64 `json:"TauSqSum"` // 平方和
	DispSum   int     `json:"DispSum"`   // 每筆總位移的和
	DispSqSum int     `json:"DispSqSum"` // 平方和
}

// DistReport 位移幅度區間落點統計
type DistReport struct {
	LandBucket  []string  `json:"LandBucket"`
	DispCollect []int     `json:"DispCollect"`
	DispDist    []float64 `json:"DispDist"`
}

// LandReport 完整落點矩陣
//
// Counts 以扁平方式存放，原始名次 orig 落在位置 pos 的次數在 Counts[orig*N+pos]。
type LandReport struct {
	N            int       `json:"N"`
	Counts       []int     `json:"Counts"`
	FirstCollect []int     `json:"FirstCollect"` // 各原始名次搶下首位的次數
	FirstDist    []float64 `json:"FirstDist"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 所有紀錄過程因為性能原因只處理int與累積和，統計完成後
//
// 請使用 Done 來通知報告統計已經完成，可以一次性計算統計結果
func (s *LandingReport) Done() {
	if s.isDone {
		return
	}
	trials := s.Summary.Trials

	// Summary
	s.Summary.TopStayRate = s.StayRate()
	_, s.Summary.TopStayCI = proportionCICP(s.Summary.TopStay, trials, 0.95)
	if s.Summary.TopK > 0 && trials > 0 {
		s.Summary.TopKRetention = float64(s.Summary.TopKRetained) / float64(s.Summary.TopK*trials)
	}
	if trials > 0 {
		s.Summary.MoveRate = 1.0 - float64(s.Summary.IdentityTrials)/float64(trials)
	}
	s.Summary.MeanShift = s.MeanShift()
	s.Summary.ShiftStd = s.shiftStd()
	s.Summary.RhoMean = s.MeanRho()
	s.Summary.RhoStd = sqSumStd(s.Rank.RhoSum, s.Rank.RhoSqSum, trials)
	s.Summary.TauMean = s.MeanTau()
	s.Summary.TauStd = sqSumStd(s.Rank.TauSum, s.Rank.TauSqSum, trials)

	// 均勻性檢定只對 inequality = 0 有意義
	if s.Summary.Inequality == 0 && s.Land != nil && len(s.Land.FirstCollect) > 1 {
		s.Summary.UniformChi2, s.Summary.UniformPValue = ChiSquareUniform(s.Land.FirstCollect)
	}

	s.isDone = true
}

// StayRate 回傳首位項目留在首位的比例
func (s *LandingReport) StayRate() float64 {
	if s.Summary.Trials == 0 {
		return 0
	}
	return float64(s.Summary.TopStay) / float64(s.Summary.Trials)
}

// MeanShift 回傳單一項目的平均位移量（總位移 / 筆數 / 清單長度）
func (s *LandingReport) MeanShift() float64 {
	if s.Summary.Trials == 0 || s.Summary.N == 0 {
		return 0
	}
	return float64(s.Rank.DispSum) / float64(s.Summary.Trials) / float64(s.Summary.N)
}

// MeanRho 回傳平均 Spearman 秩相關
func (s *LandingReport) MeanRho() float64 {
	if s.Summary.Trials == 0 {
		return 0
	}
	return s.Rank.RhoSum / float64(s.Summary.Trials)
}

// MeanTau 回傳平均 Kendall tau
func (s *LandingReport) MeanTau() float64 {
	if s.Summary.Trials == 0 {
		return 0
	}
	return s.Rank.TauSum / float64(s.Summary.Trials)
}

// shiftStd 回傳單筆平均位移的標準差（以單一項目位移為單位）
func (s *LandingReport) shiftStd() float64 {
	trials := s.Summary.Trials
	if trials < 2 || s.Summary.N == 0 {
		return 0
	}
	tf := float64(trials)
	sum := float64(s.Rank.DispSum)
	variance := (float64(s.Rank.DispSqSum) - sum*sum/tf) / (tf - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) / float64(s.Summary.N)
}

// sqSumStd 由「和」與「平方和」回傳樣本標準差
func sqSumStd(sum, sqSum float64, trials int) float64 {
	if trials < 2 {
		return 0
	}
	tf := float64(trials)
	variance := (sqSum - sum*sum/tf) / (tf - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (s *LandingReport) WriteWith(w io.Writer, rep LandingReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

func (s *LandingReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.Trials)
	sk, sm := s.fmtBasic()
	str := fmtTable(s.Summary.FeedName, sk, sm)
	fmt.Println(str)
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, trials int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	sps := int(float64(trials) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\nsps : %d shuffles/sec\n", sec, sps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\nsps : %d shuffles/sec\n", m, s, sps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\nsps : %d shuffles/sec\n", h, m, s, sps)
}

// StdOut

func (s *LandingReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Feed Name":   p.Sprintf("%s", s.Summary.FeedName),
		"Feed ID":     fmt.Sprintf("%d", s.Summary.FeedID),
		"Items":       p.Sprintf("%d", s.Summary.N),
		"Inequality":  p.Sprintf("%.3f", s.Summary.Inequality),
		"Trials":      p.Sprintf("%d", s.Summary.Trials),
		"Top Stay":    p.Sprintf("%.2f %%", 100.0*s.Summary.TopStayRate),
		"Stay 95% CI": p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.Summary.TopStayCI.Lo, 100.0*s.Summary.TopStayCI.Hi),
		"Top-K Kept":  p.Sprintf("%.2f %%", 100.0*s.Summary.TopKRetention),
		"Move Rate":   p.Sprintf("%.2f %%", 100.0*s.Summary.MoveRate),
		"Mean Shift":  p.Sprintf("%.3f", s.Summary.MeanShift),
		"Max Shift":   p.Sprintf("%d", s.Summary.MaxShift),
		"Rho":         p.Sprintf("%.4f ± %.4f", s.Summary.RhoMean, s.Summary.RhoStd),
		"Tau":         p.Sprintf("%.4f ± %.4f", s.Summary.TauMean, s.Summary.TauStd),
	}
	keys := []string{"Feed Name", "Feed ID", "Items", "Inequality", "Trials", "Top Stay", "Stay 95% CI", "Top-K Kept", "Move Rate", "Mean Shift", "Max Shift", "Rho", "Tau"}
	if s.Summary.Inequality == 0 {
		basic["Uniform p"] = p.Sprintf("%.4f", s.Summary.UniformPValue)
		keys = append(keys, "Uniform p")
	}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
