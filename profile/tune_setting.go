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

package profile

import (
	"github.com/zintix-labs/shufflelab/errs"
)

type TuneSetting struct {
	UseTuned  bool     `yaml:"use_tuned"   json:"use_tuned"`
	Artifacts []string `yaml:"artifacts"   json:"artifacts"`
	TopRate   float64  `yaml:"top_rate"    json:"top_rate"`
	Tolerance float64  `yaml:"tolerance"   json:"tolerance"`
	MaxIter   int      `yaml:"max_iter"    json:"max_iter"`
}

// valid validates the TuneSetting configuration.
// Rules:
// 1) If UseTuned is true, artifacts must be non-empty (the shuffler will
//    load tuned inequality values from these files at build time).
// 2) TopRate, when set, must stay inside (0, 1); it is the target
//    probability that the original top item keeps the first position.
// 3) Tolerance must not be negative.
func (s TuneSetting) valid() error {
	if s.TopRate < 0 || s.TopRate >= 1 {
		return errs.NewFatal("tune_setting: top_rate must be inside [0, 1)")
	}
	if s.Tolerance < 0 {
		return errs.NewFatal("tune_setting: tolerance must not be negative")
	}
	if s.MaxIter < 0 {
		return errs.NewFatal("tune_setting: max_iter must not be negative")
	}

	if !s.UseTuned {
		return nil
	}
	if len(s.Artifacts) == 0 {
		return errs.NewFatal("tune_setting: artifacts must not be empty when use_tuned=true")
	}
	return nil
}
