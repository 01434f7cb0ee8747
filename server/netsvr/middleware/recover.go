package middleware

import (
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// Recover 攔截 handler panic，回 500 並留下 stack trace。
func Recover(next http.Handler) http.Handler {
	return chimid.Recoverer(next)
}
