package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// publicPaths answer any origin; they carry no user data.
var publicPaths = []string{"/health"}

// CORS applies Cross-Origin Resource Sharing headers. With no allowed hosts
// every origin is accepted with "*". Otherwise the request origin must match
// an allowed host and is echoed back with credentials enabled; other origins
// get 403. Preflight requests are answered with 204.
func CORS(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "3600")

			origin := r.Header.Get("Origin")
			switch {
			case len(allowedHosts) == 0 || isPublicPath(r.URL.Path):
				h.Set("Access-Control-Allow-Origin", "*")
			case origin == "":
			case isOriginAllowed(origin, allowedHosts):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			default:
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func isOriginAllowed(origin string, allowedHosts []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return IsHostAllowed(u.Host, allowedHosts)
}
