package server

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the JSON body for every error status
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}

// apiKeyMiddleware requires a matching X-API-Key header: 401 when missing,
// 403 when wrong.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "API key required. Please provide X-API-Key header.")
			return
		}
		if key != s.config.APIKey {
			writeError(w, http.StatusForbidden, "Invalid API key.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets the baseline browser hardening headers on
// every response.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}
