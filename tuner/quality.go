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

package tuner

import "math"

// gate 收斂判定：量測值進入目標 ± tol 即收斂。
//
// 連續未中達 mercy 次後，每多一次未中就放寬 widenStep。
// 命中只重置計數；已放寬的容差沿用，量測噪聲大的 target 不會卡死。
type gate struct {
	tol  float64
	fail int
}

func newGate(tol float64) *gate {
	return &gate{tol: tol}
}

func (g *gate) pass(got, want float64) bool {
	if math.Abs(got-want) <= g.tol {
		g.fail = 0
		return true
	}
	g.fail++
	if g.fail >= mercy {
		g.tol += widenStep
	}
	return false
}
