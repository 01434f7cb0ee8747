// Package app 管理長駐元件的啟動與關閉：收集 Component、攔截 OS 信號、統一做優雅關閉。
package app

import "context"

// Component 是交給 App 託管的長駐元件。
//
// 約定：
//   - Run() 阻塞直到元件結束（正常返回或錯誤），代表元件的整個存活期間。
//   - Shutdown(ctx) 可在 Run() 進行中被呼叫，實作需在 ctx 期限內收尾。
//
// HTTP server 與 ShuffleRuntime 的關閉轉接器都是 Component。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}
