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

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// enum LogMode
type LogMode uint8

const (
	ModeDev LogMode = iota
	ModeProd
	ModeSilence
)

// =========================================================
// 本包支援兩種 slog 注入方式：
//
// (A) 直接取 *slog.Logger（最常用）：
//     NewDefaultLogger(LogMode) / NewDefaultAsyncLogger(LogMode)。
//
// (B) 自備 slog.Handler（進階）：
//     自行組合 slog.NewJSONHandler / slog.NewTextHandler / ReplaceAttr / LevelVar...，
//     再用 NewLogger(h) 或 NewAsyncHandler(h, buf) 包起來。
//
// AsyncHandler 可以把任何 slog.Handler 變成非阻塞（async）handler，
// 請求路徑上只做 enqueue，實際 I/O 由背景 worker 完成。
// =========================================================

// NewDefaultLogger 以 LogMode 預設組裝同步 *slog.Logger。
func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(buildHandler(mode))
}

// NewDefaultAsyncLogger 以 LogMode 預設組裝非同步 *slog.Logger。
func NewDefaultAsyncLogger(mode LogMode) *slog.Logger {
	return slog.New(NewAsyncHandler(buildHandler(mode), 8192))
}

// NewLogger 把自備的 Handler 包成 *slog.Logger；h 為 nil 時退回 Dev 預設。
func NewLogger(h slog.Handler) *slog.Logger {
	if h == nil {
		h = buildHandler(ModeDev)
	}
	return slog.New(h)
}

// AsyncHandler 是 slog.Handler 的非阻塞包裝：
//   - Handle 只做 enqueue（channel），不在請求路徑做 I/O
//   - 背景 goroutine 逐筆呼叫 next.Handle(...) 寫出
//   - channel 滿時直接丟棄（drop），用 Dropped() 觀測丟棄量
//
// WithAttrs / WithGroup 產生的衍生 handler 共用同一個 dispatcher，
// 所以整個 logger 樹共用同一條佇列與同一個 worker。
//
// 注意：slog.Logger 會忽略 Handler.Handle 回傳的 error；
// 若要處理 I/O error，請在 next handler 內自行包裝。
type AsyncHandler struct {
	next slog.Handler
	d    *dispatcher
}

type dispatcher struct {
	ch     chan entry
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	// dropCount 記錄因 buffer 滿或已關閉而丟棄的筆數
	dropCount atomic.Uint64
}

type entry struct {
	ctx     context.Context
	rec     slog.Record
	handler slog.Handler
}

// NewAsyncHandler 用背景 dispatcher 包裝 next。
// buf 是佇列深度：越大越不容易 drop，但佔用較多記憶體、shutdown drain 也較久。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = buildHandler(ModeDev)
	}
	if buf <= 0 {
		buf = 1024
	}

	d := &dispatcher{
		ch:     make(chan entry, buf),
		closed: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.worker()

	return &AsyncHandler{next: next, d: d}
}

func (h *AsyncHandler) Ready() bool {
	return (h != nil && h.d != nil)
}

// Dropped 回傳因 buffer 滿而丟棄的 log 筆數。
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.d == nil {
		return 0
	}
	return h.d.dropCount.Load()
}

// Close 停止 dispatcher 並 drain 佇列中尚未寫出的 log。
// 這不是 slog.Handler 介面的一部分；只有持有 *AsyncHandler 的組裝端能呼叫。
func (h *AsyncHandler) Close() {
	if h == nil || h.d == nil {
		return
	}
	h.d.once.Do(func() { close(h.d.closed) })
	h.d.wg.Wait()
}

func (d *dispatcher) worker() {
	defer d.wg.Done()

	// 收到 closed 後持續 drain 直到佇列清空才返回
	for {
		select {
		case it := <-d.ch:
			if it.handler != nil {
				_ = it.handler.Handle(it.ctx, it.rec)
			}
		case <-d.closed:
			for {
				select {
				case it := <-d.ch:
					if it.handler != nil {
						_ = it.handler.Handle(it.ctx, it.rec)
					}
				default:
					return
				}
			}
		}
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h == nil || h.d == nil {
		// 未初始化時靜默丟棄
		return nil
	}

	// Close() 之後不再收新 log，直接 drop
	select {
	case <-h.d.closed:
		h.d.dropCount.Add(1)
		return nil
	default:
	}

	// r.Clone() 複製 attributes，避免 Record 內部的可變引用跨 goroutine 失效。
	it := entry{ctx: ctx, rec: r.Clone(), handler: h.next}

	select {
	case h.d.ch <- it:
		return nil
	default:
		h.d.dropCount.Add(1)
		return nil
	}
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), d: h.d}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), d: h.d}
}

// NewAsync 以 LogMode 預設建 handler，再包上 AsyncHandler，一次回傳 logger 與 handler。
// 回傳 handler 是為了讓組裝端能在 shutdown 時呼叫 Close() drain log。
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	base := buildHandler(mode)
	ah := NewAsyncHandler(base, buf)
	return slog.New(ah), ah
}

func buildHandler(logmode LogMode) slog.Handler {
	switch logmode {
	case ModeDev:
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	case ModeProd:
		// 正式環境：JSON + stdout，給 Loki / Promtail
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	case ModeSilence:
		// 靜默模式：全部丟掉
		return slog.NewTextHandler(io.Discard, nil)
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
}
