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

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// App 收攏多個 Component 的生命週期：一起啟動、一起關閉。
// 任一 Component 出錯或收到 OS 終止信號時，對全部元件做優雅關閉。
type App struct {
	comps []Component
}

// New 建立空的 App。
func New() *App { return &App{} }

// NewWith 建立 App 並一次註冊多個 Component。
func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

// Register 註冊一個 Component；Run 時依註冊順序啟動。
func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// Run 併發啟動所有 Component 並阻塞，直到收到 SIGINT/SIGTERM 或任一 Component 的 Run 先返回。
//   - OS 信號：優雅關閉後回傳 nil（視為正常結束）。
//   - Component 錯誤：優雅關閉後回傳該錯誤。
//
// 約定每個 Component.Run 都是阻塞呼叫，先返回者決定整個 App 的退出原因。
func (a *App) Run() error {
	// errCh 收集最先返回的 Component 結果
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		a.gracefulShutdown(5 * time.Second)
		return nil
	case err := <-errCh:
		a.gracefulShutdown(5 * time.Second)
		return err
	}
}

// gracefulShutdown 在期限內關閉所有 Component。
// 依註冊順序反向執行：後註冊的（通常是對外的 server）先關，
// 流量先停，再關內部元件。
func (a *App) gracefulShutdown(td time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), td)
	defer cancel()
	for i := len(a.comps) - 1; i >= 0; i-- {
		if err := a.comps[i].Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stdout, "shutdown err: %v\n", err)
		}
	}
}
