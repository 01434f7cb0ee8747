package profile

import (
	"bytes"

	"github.com/zintix-labs/shufflelab/errs"
	"gopkg.in/yaml.v3"
)

// DecodeFixed 會把 fp.Fixed 由 map[string]any 轉成你要的型別 T。
// T 應該是 struct 指標，例如 *MyTransformFixed。
//
// 轉換的自訂參數 (溫度、保底曝光等) 走這條路徑，
// 共用欄位以外的設定不需要動到 FeedProfile 本體。
func DecodeFixed[T any](fp *FeedProfile, out *T) error {
	// 先把 map[string]any -> YAML bytes
	bs, err := yaml.Marshal(fp.Fixed)
	if err != nil {
		return errs.Wrap(err, "profile.fixed_decoder : marshal failed")
	}
	// 再把 YAML bytes -> 自定義的型別
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err = dec.Decode(out); err != nil {
		return errs.Wrap(err, "profile.fixed_decoder : decode failed")
	}
	return nil
}
