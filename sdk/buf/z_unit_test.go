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

package buf

import (
	"testing"

	"github.com/zintix-labs/shufflelab/profile"
)

func testFeedProfile() *profile.FeedProfile {
	return &profile.FeedProfile{
		FeedName:   "demo",
		FeedID:     7,
		Transform:  "elitist",
		Inequality: 2,
		Items: profile.ItemSetting{
			Count: 5,
		},
	}
}

func TestNewShuffleResultMetadata(t *testing.T) {
	fp := testFeedProfile()
	sr := NewShuffleResult(fp)
	if sr.FeedName != fp.FeedName || sr.PID != profile.PID(fp.FeedID) || sr.Transform != fp.Transform {
		t.Fatalf("unexpected shuffle result metadata: %+v", sr)
	}
	if len(sr.Perm) != 0 || cap(sr.Perm) < fp.Items.Count {
		t.Fatalf("expected preallocated perm buffer, got len %d cap %d", len(sr.Perm), cap(sr.Perm))
	}
}

func TestPermBufReuseAndGrow(t *testing.T) {
	sr := NewShuffleResult(testFeedProfile())

	p1 := sr.PermBuf(5)
	if len(p1) != 5 {
		t.Fatalf("expected length 5, got %d", len(p1))
	}

	// 容量足夠時應重用同一塊底層陣列
	p2 := sr.PermBuf(3)
	if &p2[0] != &p1[0] {
		t.Fatal("expected buffer reuse for smaller n")
	}

	// 超出容量時重新配置
	big := sr.PermBuf(cap(p1) + 1)
	if len(big) != cap(p1)+1 {
		t.Fatalf("expected grown buffer, got len %d", len(big))
	}
}

func TestWeightsBufGrow(t *testing.T) {
	sr := NewShuffleResult(testFeedProfile())
	w := sr.WeightsBuf(9)
	if len(w) != 9 {
		t.Fatalf("expected length 9, got %d", len(w))
	}
}

func TestShuffleResultReset(t *testing.T) {
	sr := NewShuffleResult(testFeedProfile())
	sr.N = 5
	sr.Inequality = 3
	sr.Strategy = profile.StrategyScan
	sr.PermBuf(5)
	sr.WeightsBuf(5)

	sr.Reset()
	if sr.N != 0 || sr.Inequality != 0 || sr.Strategy != profile.StrategyAuto {
		t.Fatalf("shuffle result not reset: %+v", sr)
	}
	if len(sr.Perm) != 0 || len(sr.Weights) != 0 {
		t.Fatalf("buffers not truncated: perm %d weights %d", len(sr.Perm), len(sr.Weights))
	}
	if cap(sr.Perm) == 0 {
		t.Fatal("reset should keep capacity")
	}
}

func TestShuffleRequestReset(t *testing.T) {
	req := &ShuffleRequest{
		N:             9,
		Inequality:    4,
		HasInequality: true,
		StartSnap:     []byte{1, 2, 3},
	}
	req.Reset()
	if req.N != 0 || req.HasInequality || req.StartSnap != nil {
		t.Fatalf("request not reset: %+v", req)
	}
}

func TestNoExtend(t *testing.T) {
	var e NoExtend
	e.Reset()
	if got := e.Snapshot(); got != nil {
		t.Fatalf("expected nil snapshot, got %v", got)
	}
}
