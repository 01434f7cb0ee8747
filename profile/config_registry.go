package profile

import (
	"encoding/json"

	"github.com/zintix-labs/shufflelab/errs"
	"gopkg.in/yaml.v3"
)

// GetFeedProfileByYAML
// 會讀取 YAML 設定、初始化各子設定並執行基本檢查後回傳。
func GetFeedProfileByYAML(data []byte) (*FeedProfile, error) {
	fp := &FeedProfile{}
	if err := yaml.Unmarshal(data, fp); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := fp.init(); err != nil {
		return nil, errs.Wrap(err, "feed profile initialized err")
	}

	return fp, nil
}

// GetFeedProfileByJSON
// 會讀取 Json 設定、初始化各子設定並執行基本檢查後回傳
func GetFeedProfileByJSON(data []byte) (*FeedProfile, error) {
	fp := &FeedProfile{}
	if err := json.Unmarshal(data, fp); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	// 設定檔初始化
	if err := fp.init(); err != nil {
		return nil, errs.Wrap(err, "feed profile initialized err")
	}

	return fp, nil
}
