package middleware

import (
	"net/http"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// Caller stores the client address and user agent in the request context
// so merge runs can be attributed in history. Place it after TrustedRealIP.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if addr, ok := remoteAddr(ip); ok {
			ip = addr.String()
		}
		ctx := core.ContextWithIPAddress(r.Context(), ip)
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
