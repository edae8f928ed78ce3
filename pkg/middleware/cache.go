package middleware

import "net/http"

// PrivateNoStore marks responses as per-user data that shared caches and
// browsers must not keep.
func PrivateNoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, no-store")
		next.ServeHTTP(w, r)
	})
}
