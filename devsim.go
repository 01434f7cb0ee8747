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

package shufflelab

import (
	"github.com/zintix-labs/shufflelab/corefmt"
	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/sdk/calc"
	"github.com/zintix-labs/shufflelab/stats"
)

// DevSimulator
//
// 只提供給Dev模式使用的模擬器，單線(不併發)，重點在可審計、可重現
type DevSimulator struct {
	sim      *Simulator // 只開放Sim功能
	m        *Shuffler  // 同步seed
	before   []byte
	after    []byte
	before64 string
	after64  string
}

type DevShuffleReport struct {
	Before      string              `json:"start_b64u"`
	After       string              `json:"after_b64u"`
	Round       int                 `json:"round"`
	TopStay     int                 `json:"top_stay"`
	TopStayRate float64             `json:"top_stay_rate"`
	MeanShift   float64             `json:"mean_shift"`
	Results     []dto.ShuffleResult `json:"results"`
}

func (d *DevSimulator) shuffleOne(n int, inequality float64, has bool) (dto.ShuffleResult, error) {
	req := &dto.ShuffleRequest{
		UID:           "dev",
		FeedName:      d.m.feedName,
		FeedID:        d.m.feedId,
		N:             n,
		Inequality:    inequality,
		HasInequality: has,
	}
	return d.m.Shuffle(req)
}

func (d *DevSimulator) Shuffles(n int, inequality float64, has bool, round int) (DevShuffleReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return DevShuffleReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}

	// shuffle
	ds := make([]dto.ShuffleResult, 0, round)
	for range round {
		result, err := d.shuffleOne(n, inequality, has)
		if err != nil {
			return DevShuffleReport{}, errs.Wrap(err, "shuffle error")
		}
		ds = append(ds, result)
	}
	// 統計
	stay, shiftSum := 0, 0.0
	for _, r := range ds {
		if len(r.Perm) > 0 && r.Perm[0] == 0 {
			stay++
		}
		shiftSum += calc.MeanDisplacement(r.Perm)
	}

	de := DevShuffleReport{
		Before:      ds[0].State.StartCoreSnapB64U,
		After:       ds[len(ds)-1].State.AfterCoreSnapB64U,
		Round:       len(ds),
		TopStay:     stay,
		TopStayRate: float64(stay) / float64(len(ds)),
		MeanShift:   shiftSum / float64(len(ds)),
		Results:     ds,
	}
	return de, nil
}

func (d *DevSimulator) RestoreShuffles(be64 string, n int, inequality float64, has bool, round int) (DevShuffleReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return DevShuffleReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}
	// 解析seed
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return DevShuffleReport{}, errs.NewWarn("decode seed failed" + err.Error())
	}
	// restore
	if err := d.m.RestoreCore(be); err != nil {
		return DevShuffleReport{}, errs.NewWarn("shuffler restore failed")
	}
	return d.Shuffles(n, inequality, has, round)
}

type DevSimReport struct {
	Before string               `json:"before"`
	After  string               `json:"after"`
	Stat   *stats.LandingReport `json:"statistic"`
}

func (d *DevSimulator) Sim(n int, inequality float64, has bool, trials int) (DevSimReport, error) {
	// 先存 before 快照
	m := d.sim.mBuf[0]
	be, err := m.SnapshotCore()
	if err != nil {
		return DevSimReport{}, err
	}
	be64 := corefmt.EncodeBase64URL(be)
	d.before = be
	d.before64 = be64

	// Shuffle
	if n == 0 {
		n = m.ItemCount
	}
	if !has {
		inequality = m.ResolveInequality(n)
	}
	if trials < 1 || trials > 3_000_000 {
		return DevSimReport{}, errs.NewWarn("trials must be between 1 and 3,000,000")
	}
	stat, _, err := d.sim.SimAt(n, inequality, trials, false)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "sim failed")
	}

	// 再存 after 快照
	af, err := m.SnapshotCore()
	if err != nil {
		return DevSimReport{}, err
	}
	af64 := corefmt.EncodeBase64URL(af)
	d.after = af
	d.after64 = af64

	return DevSimReport{
		Before: be64,
		After:  af64,
		Stat:   stat,
	}, nil
}

func (d *DevSimulator) RestoreSim(be64 string, n int, inequality float64, has bool, trials int) (DevSimReport, error) {
	// 反解析 string -> []byte
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "decode seed failed")
	}
	d.before = be
	d.before64 = be64

	// restore
	if err := d.sim.mBuf[0].RestoreCore(be); err != nil {
		return DevSimReport{}, errs.Wrap(err, "restore simulator failed")
	}

	return d.Sim(n, inequality, has, trials)
}
