package server

import (
	"log/slog"
	"net/http"
	"strings"

	"openreserve/observability/logging"
	"openreserve/services/reserved/config"
)

type authenticator struct {
	logger *slog.Logger
	tokens map[string]struct{}
	admins map[string]struct{}
}

func newAuthenticator(logger *slog.Logger, cfg config.AuthConfig) *authenticator {
	tokens := make(map[string]struct{})
	for _, token := range cfg.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens[trimmed] = struct{}{}
		}
	}
	admins := make(map[string]struct{})
	for _, token := range cfg.AdminTokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			admins[trimmed] = struct{}{}
		}
	}
	return &authenticator{logger: logger, tokens: tokens, admins: admins}
}

// Middleware enforces bearer-token authentication. Admin routes require a
// token from the admin list; regular routes accept either list. The daemon
// checks token possession only; identity and whitelist policy live in the
// access-control layer in front of it.
func (a *authenticator) Middleware(admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if _, ok := a.admins[token]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if admin {
				a.reject(r, token, "admin token required")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if _, ok := a.tokens[token]; ok {
				next.ServeHTTP(w, r)
				return
			}
			a.reject(r, token, "unknown token")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		})
	}
}

func (a *authenticator) reject(r *http.Request, token, reason string) {
	if a.logger == nil {
		return
	}
	a.logger.Warn("authentication rejected",
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
		logging.MaskField("token", token),
	)
}

func requestToken(r *http.Request) string {
	if token := parseBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
