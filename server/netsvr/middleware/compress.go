package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

func isNoBodyStatus(code int) bool {
	// 204 No Content, 304 Not Modified, 1xx Informational
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// CompressConfig
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
}

// compressor 是 gzip.Writer 與 zstd.Encoder 的共同面貌，
// 讓兩種編碼共用同一套 pool 取還流程。
type compressor interface {
	io.Writer
	Flush() error
	Close() error
	Reset(w io.Writer)
}

// encoderPool 以 sync.Pool 重用編碼器，miss 時用 build 建新實例。
type encoderPool struct {
	name  string // Content-Encoding 值
	pool  sync.Pool
	build func() compressor
}

func (p *encoderPool) get(w io.Writer) compressor {
	if v := p.pool.Get(); v != nil {
		enc := v.(compressor)
		enc.Reset(w)
		return enc
	}
	enc := p.build()
	enc.Reset(w)
	return enc
}

func (p *encoderPool) put(enc compressor) {
	_ = enc.Close()
	p.pool.Put(enc)
}

var zstdEncoders = &encoderPool{
	name: "zstd",
	build: func() compressor {
		zw, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(DefaultCompressConfig.ZstdLevel),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			panic(err)
		}
		return zw
	},
}

var gzipEncoders = &encoderPool{
	name: "gzip",
	build: func() compressor {
		gw, _ := gzip.NewWriterLevel(nil, DefaultCompressConfig.GzipLevel)
		return gw
	},
}

// negotiate 依 Accept-Encoding 選出編碼器 pool，zstd 優先於 gzip。
// 都不支援時回 nil。
func negotiate(acceptEncoding string) *encoderPool {
	if strings.Contains(acceptEncoding, "zstd") {
		return zstdEncoders
	}
	if strings.Contains(acceptEncoding, "gzip") {
		return gzipEncoders
	}
	return nil
}

// --- ResponseWriter Wrapper ---

type compressResponseWriter struct {
	http.ResponseWriter
	w        io.Writer // 指向 pool 取得的 compressor
	disabled bool      // 標記是否動態取消壓縮
}

func (cw *compressResponseWriter) Write(b []byte) (int, error) {
	// 1. 如果已停用壓縮 (204/304)，直接寫入底層
	if cw.disabled {
		return cw.ResponseWriter.Write(b)
	}

	// 2. 防禦隱式 Header 發送
	cw.Header().Del("Content-Length")

	// 3. 嗅探 Content-Type
	if cw.Header().Get("Content-Type") == "" {
		cw.Header().Set("Content-Type", http.DetectContentType(b))
	}

	// 4. 寫入壓縮器
	return cw.w.Write(b)
}

func (cw *compressResponseWriter) WriteHeader(code int) {
	cw.Header().Del("Content-Length")

	// 動態偵測是否應該取消壓縮 (204/304/1xx)
	if isNoBodyStatus(code) {
		cw.disabled = true
		cw.Header().Del("Content-Encoding")
		cw.Header().Del("Vary")
	}

	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressResponseWriter) Flush() {
	// 只有在啟用壓縮時，才 Flush 壓縮器
	if !cw.disabled {
		if f, ok := cw.w.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
	// 永遠 Flush 底層
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

func (cw *compressResponseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := cw.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return errors.New("underlying response writer does not support Pusher")
}

// --- Middleware 入口 ---

func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// [Guard 1] WebSocket / Head
		if r.Method == http.MethodHead || isWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		// [Guard 2] 避免二次壓縮
		if w.Header().Get("Content-Encoding") != "" {
			next.ServeHTTP(w, r)
			return
		}

		pool := negotiate(r.Header.Get("Accept-Encoding"))
		if pool == nil {
			// 不壓縮
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", pool.name)
		w.Header().Add("Vary", "Accept-Encoding")

		enc := pool.get(w)
		cw := &compressResponseWriter{ResponseWriter: w, w: enc}
		// 若 response 途中被標記成 disabled (204/304)，把 Writer 重置到 io.Discard，
		// Close() 產生的 Footer 就會被丟棄，不會污染無 body 的回應
		defer func() {
			if cw.disabled {
				enc.Reset(io.Discard)
			}
			pool.put(enc)
		}()

		next.ServeHTTP(cw, r)
	})
}
