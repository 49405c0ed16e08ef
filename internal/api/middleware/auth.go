package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// BasicAuth guards every route with HTTP basic auth when credentials are
// configured. With empty credentials it is a no-op, which is the default
// for local development.
//
// Comparison is constant-time over digests so neither the username nor the
// password length leaks through timing.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	enabled := username != "" && password != ""
	wantUser := sha256.Sum256([]byte(username))
	wantPass := sha256.Sum256([]byte(password))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if ok {
				gotUser := sha256.Sum256([]byte(user))
				gotPass := sha256.Sum256([]byte(pass))
				userMatch := subtle.ConstantTimeCompare(gotUser[:], wantUser[:]) == 1
				passMatch := subtle.ConstantTimeCompare(gotPass[:], wantPass[:]) == 1
				if userMatch && passMatch {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="agentrelay"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
