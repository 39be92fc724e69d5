package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketfront-go/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Phase is the state of the callback page.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

const maxCloseDelay = time.Second

// CallbackConfig controls how the callback page leaves.
type CallbackConfig struct {
	// CloseDelay is how long the login window stays open after posting its message.
	CloseDelay time.Duration
	// RedirectDelay is how long the success state is shown before a non-popup redirect.
	RedirectDelay time.Duration
	// LandingPath is used when no return URL was stored.
	LandingPath string
}

// CallbackResult is the terminal outcome of one callback.
type CallbackResult struct {
	Phase      Phase
	State      string
	Err        *Error
	Token      string
	User       json.RawMessage
	SetCookies []*http.Cookie
	ReturnURL  string

	cfg CallbackConfig
}

// ExitAction says what the callback page does once it reaches a terminal phase.
type ExitAction struct {
	PostMessage   *Message
	CloseAfter    time.Duration
	RedirectTo    string
	RedirectAfter time.Duration
}

// Message builds the message posted to the opener.
func (r *CallbackResult) Message() Message {
	if r.Phase == PhaseSuccess {
		user := r.User
		if len(user) == 0 {
			user = json.RawMessage(`{}`)
		}
		return Message{Type: MessageSuccess, User: user, State: r.State}
	}
	m := Message{Type: MessageError, State: r.State}
	if r.Err != nil {
		m.Message = r.Err.Message
		m.Code = string(r.Err.Code)
		if r.Err.Code == ErrProviderDenied {
			m.Type = MessageDenied
		}
	}
	return m
}

// Exit returns the page's exit behavior. A login window messages its opener
// and closes; a directly navigated page redirects on success and otherwise
// stays on the error state.
func (r *CallbackResult) Exit(openedAsPopup bool) ExitAction {
	if openedAsPopup {
		m := r.Message()
		delay := r.cfg.CloseDelay
		if delay > maxCloseDelay {
			delay = maxCloseDelay
		}
		return ExitAction{PostMessage: &m, CloseAfter: delay}
	}
	if r.Phase != PhaseSuccess {
		return ExitAction{}
	}
	target := r.ReturnURL
	if target == "" {
		target = r.cfg.LandingPath
	}
	return ExitAction{RedirectTo: target, RedirectAfter: r.cfg.RedirectDelay}
}

// CallbackHandler completes the authorization code exchange inside the login window.
type CallbackHandler struct {
	shared    SharedStore
	exchanger Exchanger
	tokens    TokenSink
	cfg       CallbackConfig
	logger    *log.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(shared SharedStore, exchanger Exchanger, tokens TokenSink, cfg CallbackConfig, logger *log.Logger) *CallbackHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	return &CallbackHandler{
		shared:    shared,
		exchanger: exchanger,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle runs the callback for scope with the redirect's query parameters.
// It never returns an error; failures are reported in the result.
func (h *CallbackHandler) Handle(ctx context.Context, scope string, query url.Values, cookies []*http.Cookie) *CallbackResult {
	result := h.handle(ctx, scope, query, cookies)
	result.cfg = h.cfg

	code := ""
	if result.Err != nil {
		code = string(result.Err.Code)
	}
	metrics.CallbackOutcomes.WithLabelValues(string(result.Phase), code).Inc()

	entry := h.logger.WithFields(log.Fields{"scope": scope, "phase": result.Phase})
	if result.Err != nil {
		entry.WithError(result.Err).Warn("wallet callback failed")
	} else {
		entry.Info("wallet callback completed")
	}
	return result
}

func (h *CallbackHandler) handle(ctx context.Context, scope string, query url.Values, cookies []*http.Cookie) *CallbackResult {
	returned := query.Get("state")
	fail := func(err *Error) *CallbackResult {
		return &CallbackResult{Phase: PhaseError, State: returned, Err: err}
	}

	if providerErr := query.Get("error"); providerErr != "" {
		code := ErrProviderError
		if providerErr == "access_denied" {
			code = ErrProviderDenied
		}
		return fail(NewError(code, query.Get("error_description")))
	}

	authCode := query.Get("code")
	if authCode == "" {
		return fail(NewError(ErrMissingCode, ""))
	}

	stored, ok, err := h.shared.GetItem(ctx, scope, KeyOAuthState)
	if err != nil {
		return fail(WrapError(ErrStorageFailed, "", fmt.Errorf("failed to read stored state: %w", err)))
	}
	if !ok || stored == "" || returned != stored {
		return fail(NewError(ErrInvalidState, ""))
	}

	verifier, ok, err := h.shared.GetItem(ctx, scope, KeyCodeVerifier)
	if err != nil {
		return fail(WrapError(ErrStorageFailed, "", fmt.Errorf("failed to read code verifier: %w", err)))
	}
	if !ok || verifier == "" {
		return fail(NewError(ErrInvalidState, "Missing code verifier"))
	}
	redirectURI, ok, err := h.shared.GetItem(ctx, scope, KeyRedirectURI)
	if err != nil {
		return fail(WrapError(ErrStorageFailed, "", fmt.Errorf("failed to read redirect URI: %w", err)))
	}
	if !ok || redirectURI == "" {
		return fail(NewError(ErrInvalidState, "Missing redirect URI"))
	}

	start := time.Now()
	exchanged, err := h.exchanger.Exchange(ctx, ExchangeRequest{
		Code:         authCode,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
		Cookies:      cookies,
	})
	if err != nil {
		metrics.ExchangeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		var authErr *Error
		if errors.As(err, &authErr) {
			return fail(authErr)
		}
		return fail(WrapError(ErrExchangeFailed, "", err))
	}
	metrics.ExchangeDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	if exchanged == nil || exchanged.Token == "" {
		return fail(NewError(ErrNoToken, ""))
	}

	if err := h.shared.RemoveItems(ctx, scope, PKCEKeys...); err != nil {
		h.logger.WithError(err).WithField("scope", scope).Warn("failed to clear wallet PKCE entries")
	}
	if err := h.tokens.StoreWalletToken(ctx, scope, exchanged.Token); err != nil {
		return fail(WrapError(ErrStorageFailed, "", fmt.Errorf("failed to store token: %w", err)))
	}

	returnURL, found, err := h.shared.GetItem(ctx, scope, KeyReturnURL)
	if err == nil && found {
		_ = h.shared.RemoveItems(ctx, scope, KeyReturnURL)
	}

	return &CallbackResult{
		Phase:      PhaseSuccess,
		State:      returned,
		Token:      exchanged.Token,
		User:       exchanged.User,
		SetCookies: exchanged.SetCookies,
		ReturnURL:  returnURL,
	}
}
