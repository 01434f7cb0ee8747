package middleware

import (
	"net/http"
	"strings"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// RequestID 為每個請求掛上 chi 的 request id（寫入 ctx）。
func RequestID(next http.Handler) http.Handler {
	return chimid.RequestID(next)
}

// GetReqId 取出完整 request id（host/prefix-seq 格式）。
func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}

// GetReqIdNumPart 只取 request id 的流水號尾段，log 用這個比較省欄寬。
func GetReqIdNumPart(r *http.Request) string {
	str := chimid.GetReqID(r.Context())
	if len(str) == 0 {
		return ""
	}
	i := strings.LastIndex(str, "-")
	if i < 0 || i+1 >= len(str) {
		return str
	}
	return str[i+1:]
}
