package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// 這組 task 取代原本的 Makefile：
//   test        只列 ok / FAIL 摘要
//   test-all    全跑 + coverage，輸出不過濾
//   test-detail verbose，但濾掉 [no test files] 噪音
//
// 三個都會先 go clean -testcache，洗牌相關的統計測試吃亂數，
// cache 住的綠燈沒有參考價值。

func runTest() {
	PrintGreen("running tests")
	cleanTestCache(false)

	streamGoTest([]string{"./...", "-cover", "-count=1"}, func(line string) {
		// 模擬 grep -E '^(ok|FAIL)'
		if strings.HasPrefix(line, "ok") {
			PrintGreen(line)
		} else if strings.HasPrefix(line, "FAIL") {
			PrintRed(line)
		} else if strings.Contains(line, "build failed") || strings.Contains(line, "setup failed") {
			// 編譯錯誤不會以 ok/FAIL 開頭，全濾掉會看不出為什麼沒反應
			PrintRed(line)
		}
	}, "\nTests Finished with Errors\n")
}

func runTestAll() {
	PrintGreen("running tests (all with coverage)")
	cleanTestCache(true)

	testCmd := exec.Command("go", "test", "./...", "-cover")
	testCmd.Stdout = os.Stdout
	testCmd.Stderr = os.Stderr

	if err := testCmd.Run(); err != nil {
		PrintRed("\nTests (with coverage) finished with errors\n")
		os.Exit(1)
	}
}

func runTestDetail() {
	PrintGreen("running tests (detail)")
	cleanTestCache(true)

	streamGoTest([]string{"./...", "-v", "-count=1"}, func(line string) {
		// 等同 grep -v '\[no test files\]'
		if strings.Contains(line, "[no test files]") {
			return
		}
		if strings.HasPrefix(line, "ok") {
			PrintGreen(line)
		} else if strings.HasPrefix(line, "FAIL") {
			PrintRed(line)
		} else {
			fmt.Println(line)
		}
	}, "\nTests (detail) finished with errors\n")
}

// cleanTestCache 執行 go clean -testcache。
// strict 時失敗直接結束，否則只提示並繼續。
func cleanTestCache(strict bool) {
	cleanCmd := exec.Command("go", "clean", "-testcache")
	cleanCmd.Stdout = os.Stdout
	cleanCmd.Stderr = os.Stderr
	if err := cleanCmd.Run(); err != nil {
		if strict {
			PrintRed(fmt.Sprintf("go clean -testcache failed: %v", err))
			os.Exit(1)
		}
		PrintRed(err.Error())
	}
}

// streamGoTest 執行 go test 並逐行過濾輸出。
// stderr 併入 stdout (等同 shell 的 2>&1)，編譯錯誤也會流進 filter。
func streamGoTest(args []string, filter func(string), failMsg string) {
	cmd := exec.Command("go", append([]string{"test"}, args...)...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		PrintRed(fmt.Sprintf("failed to get stdout pipe: %v", err))
		os.Exit(1)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		PrintRed(fmt.Sprintf("Error starting go test: %v", err))
		os.Exit(1)
	}

	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		filter(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// 通常是 IO 問題，印出來但讓 Wait 決定退出碼
		PrintRed(fmt.Sprintf("scanner error: %v", err))
	}

	// 等待指令結束並檢查 Exit Code
	if err := cmd.Wait(); err != nil {
		PrintRed(failMsg)
		os.Exit(1)
	}
}
