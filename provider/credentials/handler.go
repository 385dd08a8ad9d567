package credentials

import (
	"encoding/json"
	"net/http"
	"path"
)

// PassthroughHandler serves the provider owned routes that the gateway does
// not shape itself. Currently that is sign out; anything else under the auth
// prefix is the provider's 404.
func (p *Provider) PassthroughHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && path.Base(r.URL.Path) == "sign-out" {
			p.handleSignOut(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, map[string]any{
			"message": "Not Found",
		})
	})
}

func (p *Provider) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromHeaders(r.Header, p.cookieName)

	if token != "" {
		if err := p.RevokeSession(r.Context(), token); err != nil {
			p.logger.Error("failed to revoke session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"message": "Internal Server Error",
			})
			return
		}
	}

	http.SetCookie(w, p.expiredCookie())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
