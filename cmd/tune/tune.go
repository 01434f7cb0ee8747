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

package main

import (
	"embed"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/zintix-labs/shufflelab/demo"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/tuner"
)

//go:embed tune_cfg.yaml
var TuneCfg embed.FS

var tunefid profile.PID

func main() {
	flag.Var(fidFlag{&tunefid}, "feed", "target feed id")
	flag.Parse()
	lab, err := demo.NewShuffleLab()
	if err != nil {
		log.Fatal(err)
	}
	t, err := tuner.New(TuneCfg, "tune_cfg.yaml")
	if err != nil {
		log.Fatal(err)
	}
	if err := t.Run(tunefid, lab, 4127483647); err != nil {
		log.Fatal(err)
	}
}

type fidFlag struct{ p *profile.PID }

func (f fidFlag) String() string { return fmt.Sprint(int(*f.p)) }
func (f fidFlag) Set(s string) error {
	u, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = profile.PID(int(u))
	return nil
}
