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

import "github.com/zintix-labs/shufflelab/errs"

// fit 對單一 target 收斂 inequality：
//  1. bracket 以加倍搜尋把目標包夾在 [lo, hi]。
//  2. 以包夾端點的命中率對目標做凸組合（false position）推進；
//     包夾太偏時退回對半切，避免黏在端點。
//  3. gate 判定收斂；連續未中時 gate 會放寬容差。
func (t *Tuner) fit(tg *target, top float64, trials, maxIter int, g *gate) error {
	lo, sLo, hi, sHi, err := t.bracket(tg, top, trials)
	if err != nil {
		return err
	}
	if sLo >= top {
		// 均勻洗牌已達標，底線 0 就是答案
		tg.value = 0
		tg.stay = sLo
		tg.isOK = true
		return nil
	}
	for range maxIter {
		diff := sHi - sLo
		p := 0.5
		if diff > 0 {
			p = (top - sLo) / diff
		}
		if p < 0.1 || p > 0.9 {
			p = 0.5
		}
		q := lo + p*(hi-lo)
		s := t.measure(tg, q, trials)
		if g.pass(s, top) {
			tg.value = q
			tg.stay = s
			tg.isOK = true
			return nil
		}
		if s < top {
			lo, sLo = q, s
		} else {
			hi, sHi = q, s
		}
	}
	return errs.Warnf("n=%d: not converged after %d iters (target=%.4f tolerance=%.4f)", tg.n, maxIter, top, g.tol)
}
