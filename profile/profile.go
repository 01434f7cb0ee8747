package profile

import (
	"fmt"
	"math"

	"github.com/zintix-labs/shufflelab/errs"
)

// PID 是清單設定檔的數值編號，對外 API 與 catalog 均以此為主鍵。
type PID int

// TransformKey 識別一種權重轉換，註冊與設定檔以此字串對應。
type TransformKey string

// FeedProfile 包含啟動一個洗牌器所需的所有高階設定。
type FeedProfile struct {
	FeedName   string         `yaml:"feed_name"        json:"feed_name"`
	FeedID     PID            `yaml:"feed_id"          json:"feed_id"`
	Transform  TransformKey   `yaml:"transform"        json:"transform"`
	Inequality float64        `yaml:"inequality"       json:"inequality"`
	Items      ItemSetting    `yaml:"item_setting"     json:"item_setting"`
	Sampler    SamplerSetting `yaml:"sampler_setting"  json:"sampler_setting"`
	Sim        SimSetting     `yaml:"sim_setting"      json:"sim_setting"`
	Tune       TuneSetting    `yaml:"tune_setting"     json:"tune_setting"`
	Fixed      map[string]any `yaml:"fixed"            json:"fixed"`
}

// init
func (fp *FeedProfile) init() error {
	if err := fp.Items.Init(); err != nil {
		return err
	}
	if err := fp.Sampler.Init(); err != nil {
		return err
	}
	if err := fp.Sim.Init(); err != nil {
		return err
	}
	if err := fp.Tune.valid(); err != nil {
		return err
	}
	return fp.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (fp *FeedProfile) valid() error {

	if len(fp.FeedName) == 0 {
		return errs.NewFatal("empty feed_name")
	}

	if len(fp.Transform) == 0 {
		return errs.NewFatal(fmt.Sprintf("feed_name: %s err:empty transform", fp.FeedName))
	}

	// 設定檔層級的 inequality 錯誤屬於部署錯誤，直接 Fatal；
	// 請求層級的覆寫值另由 dto 以 Warn 擋下
	if fp.Inequality < 0 || math.IsNaN(fp.Inequality) || math.IsInf(fp.Inequality, 0) {
		return errs.NewFatal(fmt.Sprintf("feed_name: %s err:invalid inequality %v", fp.FeedName, fp.Inequality))
	}

	return nil
}
