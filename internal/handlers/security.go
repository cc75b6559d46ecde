package handlers

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// validBearer checks "Authorization: Bearer <secret>".
// If secret is empty, validation is skipped (returns true).
func validBearer(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(secret))
}

// requireSecret rejects requests that do not carry secret as a bearer token.
func (h *Handler) requireSecret(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validBearer(r, secret) {
			h.log.Warn("rejected request with bad secret", zap.String("path", r.URL.Path), zap.String("remote", clientKey(r, nil)))
			h.fail(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		next(w, r)
	}
}
