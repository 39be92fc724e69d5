package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"marketfront-go/internal/locale"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// contextKey is a custom type to use as a key for context values.
type contextKey string

const (
	scopeContextKey  = contextKey("scope")
	localeContextKey = contextKey("locale")
	tokenContextKey  = contextKey("token")
)

// sessionCookie names the cookie carrying the browser scope.
const sessionCookie = "session_id"

// requestLogger logs each request with its status and duration. The level
// follows the status: 5xx errors, 4xx warnings, the rest info.
func (a *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry := a.Logger.WithFields(log.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	})
}

// withScope identifies the browser by its session cookie, starting a new
// session when the cookie is missing or stale. Every response refreshes the
// cookie so an active browser keeps its scope.
func (a *Application) withScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ttl := a.Config.Auth.SessionTTL.Duration

		var id string
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			if err := a.Sessions.Extend(ctx, cookie.Value, ttl); err == nil {
				id = cookie.Value
			} else {
				a.Logger.WithError(err).Debug("middleware: discarding stale session")
			}
		}
		if id == "" {
			sess, err := a.Sessions.Create(ctx, ttl)
			if err != nil {
				a.Logger.WithError(err).Error("middleware: failed to create session")
				writeError(w, http.StatusInternalServerError, "failed to create session")
				return
			}
			id = sess.ID
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HttpOnly: true,
			Secure:   a.Config.Auth.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, scopeContextKey, id)))
	})
}

// requireLocale accepts the supported locale segments and redirects
// everything else to the same path under the best Accept-Language match.
func (a *Application) requireLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seg := chi.URLParam(r, "locale")
		if locale.IsSupported(seg) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeContextKey, seg)))
			return
		}

		target := "/" + a.Negotiator.Match(r.Header.Get("Accept-Language")) + strings.TrimPrefix(r.URL.Path, "/"+seg)
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// requireAuth is a middleware that ensures the browser holds a valid token.
func (a *Application) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, _ := getScopeFromContext(r)
		token, err := a.Tokens.GetToken(r.Context(), scope)
		if err != nil || !token.Valid() {
			if err != nil {
				a.Logger.WithError(err).Debug("middleware: no usable token for scope")
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenContextKey, token)))
	})
}

// getScopeFromContext retrieves the browser scope from the request's context.
func getScopeFromContext(r *http.Request) (string, bool) {
	scope, ok := r.Context().Value(scopeContextKey).(string)
	return scope, ok
}

// getLocaleFromContext retrieves the path locale, falling back to the default.
func getLocaleFromContext(r *http.Request) string {
	if l, ok := r.Context().Value(localeContextKey).(string); ok {
		return l
	}
	return locale.Default
}

func getTokenFromContext(r *http.Request) (*oauth2.Token, bool) {
	token, ok := r.Context().Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
