package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	msgUnauthorized = "Unauthorized"

	// chatSocketPath accepts the key as ?access_token= because browsers
	// cannot set headers on a WebSocket handshake.
	chatSocketPath   = "/api/chat/ws"
	accessTokenParam = "access_token"
)

// publicPaths skip authentication.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware checks the API key on every non-public route.
// With no non-empty keys configured the API is open.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflights carry no credentials.
			if _, ok := publicPaths[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, problem := credential(r)
			if problem != "" {
				writeError(w, http.StatusUnauthorized, msgUnauthorized, problem)
				return
			}
			if !knownKey(keys, token) {
				writeError(w, http.StatusUnauthorized, msgUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented key, or describes why none was usable.
func credential(r *http.Request) (token, problem string) {
	auth := r.Header.Get("Authorization")
	if auth == "" && r.URL.Path == chatSocketPath {
		if t := r.URL.Query().Get(accessTokenParam); t != "" {
			return t, ""
		}
	}
	if auth == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "authorization header must use Bearer scheme"
	}
	return token, ""
}

// knownKey compares in constant time against every configured key.
func knownKey(keys [][]byte, token string) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return found == 1
}
