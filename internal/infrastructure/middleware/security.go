package middleware

import (
	"fmt"
	"net/http"
)

// ContentSecurityMiddleware sets a frame-ancestors policy so pages are only
// embeddable inside the requesting shop's admin. Without a shop parameter
// framing is denied entirely.
func ContentSecurityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop := r.URL.Query().Get("shop")
			if shop != "" {
				w.Header().Set("Content-Security-Policy",
					fmt.Sprintf("frame-ancestors https://%s https://admin.shopify.com;", shop))
			} else {
				w.Header().Set("Content-Security-Policy", "frame-ancestors 'none';")
			}
			next.ServeHTTP(w, r)
		})
	}
}
