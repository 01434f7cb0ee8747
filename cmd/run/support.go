package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"strconv"

	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/demo/demo_configs"
	"github.com/zintix-labs/shufflelab/demo/demo_transform"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/core"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name       string
	id         profile.PID
	worker     int
	streams    int
	n          int
	inequality float64
	trials     int
	seed       int64
	pprofmode  string
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

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(fidFlag{&cfg.id}, "feed", "target feed id")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.streams, "streams", 1, "number of independent seed streams")
	flag.IntVar(&cfg.n, "n", 0, "list length override, 0 = profile count")
	flag.Float64Var(&cfg.inequality, "q", -1, "inequality override, negative = profile value")
	flag.IntVar(&cfg.trials, "trials", 10000000, "shuffles per run")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

// 這裡解析並分支要執行的模擬器
func executeSimulator() { // 取得模擬參數
	cfg.valid() // 基本檢查

	lab, err := shufflelab.NewAuto(
		core.Default(),
		shufflelab.Configs(demo_configs.FS),
		shufflelab.Transforms(elitist.BuiltinRegistry(), demo_transform.Transforms),
	)
	if err != nil {
		log.Fatal(err)
	}
	s, err := lab.NewSimulatorWithSeed(cfg.id, cfg.seed)
	if err != nil {
		log.Fatal(err)
	}
	ent, _ := lab.EntryById(cfg.id)
	cfg.name = ent.Name
	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	n, q, override := cfg.resolveOverride(lab)

	if cfg.streams == 1 { // 純洗牌模擬
		if cfg.worker == 1 { // 單線程
			p.Printf("%s[FEED:%s] [N:%d Q:%s] [TRIALS:%d]%s\n", green, cfg.name, n, fmtQ(q), cfg.trials, reset)
			if override {
				st, used, _ := s.SimAt(n, q, cfg.trials, true)
				st.StdOut(used)
			} else {
				st, used, _ := s.Sim(cfg.trials, true)
				st.StdOut(used)
			}
		} else {
			p.Printf("%s[WORKERS:%d] [FEED:%s] [N:%d Q:%s] [TRIALS:%d]%s\n", green, cfg.worker, cfg.name, n, fmtQ(q), cfg.worker*cfg.trials, reset)
			if override {
				st, used, _ := s.SimMPAt(n, q, cfg.trials, cfg.worker, true) // 併發
				st.StdOut(used)
			} else {
				st, used, _ := s.SimMP(cfg.trials, cfg.worker, true) // 併發
				st.StdOut(used)
			}
		}
	} else { // 模擬多條種子流
		p.Printf("%s[WORKERS:%d] [FEED:%s] [STREAMS:%d TRIALS:%d]%s\n", green, cfg.worker, cfg.name, cfg.streams, cfg.trials, reset)
		st, est, used, _ := s.SimSeeds(cfg.worker, cfg.streams, cfg.trials, true)
		st.StdOut(used)
		est.Out()
	}
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}

	// 種子流檢查
	// 種子流數量 > 0
	if cfg.streams < 1 {
		log.Fatal("value err : streams must > 0")
	}
	// 每條種子流各持有一個紀錄員 落點矩陣隨 n^2 放大
	if cfg.streams > 1000 {
		p.Printf("too much streams: %d resized to 1k streams\n", cfg.streams)
		cfg.streams = 1000
	}

	// 種子流模式不支援覆寫 n / inequality
	if cfg.streams > 1 && (cfg.n > 0 || cfg.inequality >= 0) {
		log.Fatal("value err : n / q override only works with streams = 1")
	}

	// 洗牌次數檢查
	if cfg.trials < 1 {
		log.Fatal("value err : trials must > 0")
	}

	// 多條種子流的時候，每條最高不超過15000次(無意義)
	// 單條 15000 次已足夠觀察頭部停留率收斂，整體差異直接模擬長局數單流即可
	if cfg.streams > 1 && cfg.trials > 15000 {
		p.Printf("too much trials for each stream : %d resized to 15k trials for each stream\n", cfg.trials)
		cfg.trials = 15000
	}
}

// resolveOverride 把 CLI 覆寫跟 profile 預設值合併。
// 任一覆寫存在時回傳 override = true，改走 SimAt / SimMPAt。
func (cfg *config) resolveOverride(lab *shufflelab.ShuffleLab) (int, float64, bool) {
	sums, err := lab.Summary()
	if err != nil {
		log.Fatal(err)
	}
	n, q := 0, 0.0
	for _, sum := range sums {
		if sum.FID == cfg.id {
			n, q = sum.Count, sum.Inequality
			break
		}
	}
	override := cfg.n > 0 || cfg.inequality >= 0
	if cfg.n > 0 {
		n = cfg.n
	}
	if cfg.inequality >= 0 {
		q = cfg.inequality
	}
	return n, q, override
}

func fmtQ(q float64) string {
	return strconv.FormatFloat(q, 'g', -1, 64)
}
