package main

import (
	"fmt"
	"os"
)

// runClean 清掉本機產出的 artifacts：
//   - build/tuner      cmd/tune 輸出的 tuned_<fid>.json.zst
//   - build/profiling  cmd/run -p 產出的 pprof 檔
//
// 只動 build/ 底下的固定路徑，不碰其他東西。
func runClean() {
	targets := []string{
		"build/tuner",
		"build/profiling",
	}
	for _, dir := range targets {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			PrintYellow(fmt.Sprintf("skip %s (not found)", dir))
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			PrintRed(fmt.Sprintf("remove %s failed: %v", dir, err))
			os.Exit(1)
		}
		PrintGreen("removed " + dir)
	}
}
