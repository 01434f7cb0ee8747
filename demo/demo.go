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

package demo

import (
	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/catalog"
	"github.com/zintix-labs/shufflelab/demo/demo_configs"
	"github.com/zintix-labs/shufflelab/demo/demo_transform"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
	"github.com/zintix-labs/shufflelab/server/logger"
	"github.com/zintix-labs/shufflelab/server/svrcfg"
)

func New() (*catalog.Catalog, error) {
	return catalog.New(demo_configs.FS)
}

func NewServerConfig() (*svrcfg.SvrCfg, error) {
	lab, err := shufflelab.NewAuto(
		core.Default(),
		shufflelab.Configs(demo_configs.FS),
		shufflelab.Transforms(elitist.BuiltinRegistry(), demo_transform.Transforms),
	)
	if err != nil {
		return nil, errs.NewFatal("new shufflelab failed:" + err.Error())
	}
	scfg := &svrcfg.SvrCfg{
		Log:              logger.NewDefaultAsyncLogger(logger.ModeDev),
		ShufflerPoolSize: 1,
		Lab:              lab,
	}
	return scfg, nil
}

func NewShuffleLab() (*shufflelab.ShuffleLab, error) {
	return shufflelab.NewAuto(
		core.Default(),
		shufflelab.Configs(demo_configs.FS),
		shufflelab.Transforms(elitist.BuiltinRegistry(), demo_transform.Transforms),
	)
}
