package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketfront-go/internal/auth"
	"marketfront-go/internal/locale"
	"marketfront-go/internal/popup"

	log "github.com/sirupsen/logrus"
)

//
// Page Handlers
//

// handleRoot sends the browser to the home page of its preferred locale.
func (a *Application) handleRoot(w http.ResponseWriter, r *http.Request) {
	target := "/" + a.Negotiator.Match(r.Header.Get("Accept-Language")) + "/"
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *Application) handleHome(w http.ResponseWriter, r *http.Request) {
	loc := getLocaleFromContext(r)
	scope, _ := getScopeFromContext(r)
	state := a.Registry.For(r.Context(), scope).Snapshot()

	a.render(w, http.StatusOK, "home.html", homeView{
		Locale:          loc,
		StartURL:        "/" + loc + "/auth/wallet/start",
		TrustedOrigin:   a.Config.PublicOrigin,
		IsAuthenticated: state.IsAuthenticated,
		SignIn:          locale.T(loc, "Sign in with Wallet"),
		SignOut:         locale.T(loc, "Sign out"),
		PopupBlocked:    locale.T(loc, "Popup was blocked. Please allow popups for this site and try again."),
	})
}

// handleStart is the page the login window opens. It begins a login for the
// browser and redirects the window to the wallet.
func (a *Application) handleStart(w http.ResponseWriter, r *http.Request) {
	loc := getLocaleFromContext(r)
	scope, _ := getScopeFromContext(r)
	entry := a.Logger.WithField("scope", scope)

	opener := &redirectOpener{}
	_, err := a.Controller.BeginLogin(r.Context(), opener, scope, popup.LoginOptions{
		Locale:    loc,
		ReturnURL: sanitizeReturnURL(r.URL.Query().Get("return_url")),
		OnSuccess: func(json.RawMessage) {
			entry.Info("wallet login finalized")
		},
		OnError: func(err *auth.Error) {
			entry.WithField("code", err.Code).Warn("wallet login failed")
		},
		OnTimeout: func() {
			entry.Info("wallet login abandoned")
		},
	})
	if err != nil {
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			authErr = auth.WrapError(auth.ErrProviderError, "", err)
		}
		msg := auth.Message{Type: auth.MessageError, Code: string(authErr.Code), Message: authErr.Message}
		a.render(w, http.StatusOK, "callback.html", a.errorView(loc, authErr, &msg))
		return
	}

	http.Redirect(w, r, opener.window.Location(), http.StatusFound)
}

// handleCallback is the wallet's redirect target. It redeems the code,
// reports the outcome to the opener and renders the page that notifies the
// opener's window.
func (a *Application) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := getLocaleFromContext(r)
	scope, _ := getScopeFromContext(r)

	result := a.Callback.Handle(ctx, scope, r.URL.Query(), r.Cookies())
	for _, c := range result.SetCookies {
		http.SetCookie(w, c)
	}

	msg := result.Message()
	delivered := a.Relay.PostMessage(scope, a.Config.PublicOrigin, msg)
	if delivered == 0 && result.Phase == auth.PhaseSuccess {
		// Navigated directly, so no attempt is waiting for the message.
		a.Registry.For(ctx, scope).OnLoginSuccess(msg.User)
	}

	a.render(w, http.StatusOK, "callback.html", a.callbackView(loc, result))
}

//
// API Handlers
//

func (a *Application) handleState(w http.ResponseWriter, r *http.Request) {
	scope, _ := getScopeFromContext(r)
	writeJSON(w, http.StatusOK, a.Registry.For(r.Context(), scope).Snapshot())
}

type meResponse struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	User            json.RawMessage `json:"user"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
}

func (a *Application) handleMe(w http.ResponseWriter, r *http.Request) {
	scope, _ := getScopeFromContext(r)
	token, _ := getTokenFromContext(r)

	state := a.Registry.For(r.Context(), scope).Snapshot()
	resp := meResponse{IsAuthenticated: true, User: state.User}
	if token != nil && !token.Expiry.IsZero() {
		resp.ExpiresAt = &token.Expiry
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogout removes the browser's token and announces the logout.
func (a *Application) handleLogout(w http.ResponseWriter, r *http.Request) {
	scope, _ := getScopeFromContext(r)

	if attempt := a.Controller.Pending(scope); attempt != nil {
		attempt.Cancel()
	}
	if err := a.Tokens.DeleteToken(r.Context(), scope); err != nil {
		a.Logger.WithError(err).WithField("scope", scope).Error("failed to delete token")
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	a.Registry.For(r.Context(), scope).OnLogout()

	a.Logger.WithFields(log.Fields{"scope": scope}).Info("browser logged out")
	w.WriteHeader(http.StatusNoContent)
}

// sanitizeReturnURL keeps only same-origin relative paths.
func sanitizeReturnURL(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return u.String()
}
