package popup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"marketfront-go/internal/auth"
	"marketfront-go/internal/authstate"
	"marketfront-go/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// DefaultLoginTimeout clears a pending login whose window never reports back.
const DefaultLoginTimeout = time.Minute

// LoginOptions configures a single BeginLogin call.
type LoginOptions struct {
	Locale string
	// ReturnURL is where a non-popup callback sends the user on success.
	ReturnURL string
	OnSuccess func(user json.RawMessage)
	OnError   func(err *auth.Error)
	// OnTimeout runs when the attempt is abandoned, so the caller can clear
	// its loading state. OnError is not called in that case.
	OnTimeout func()
}

// Config holds Controller settings.
type Config struct {
	LoginTimeout time.Duration
}

// Controller runs wallet logins on behalf of an opener.
type Controller struct {
	generator *auth.PKCEGenerator
	shared    auth.SharedStore
	wallet    *auth.WalletClient
	relay     *Relay
	states    *authstate.Registry
	cfg       Config
	logger    *log.Logger

	mu      sync.Mutex
	pending map[string]*Attempt
	locks   map[string]*scopeLock
}

// NewController creates a new Controller.
func NewController(generator *auth.PKCEGenerator, shared auth.SharedStore, wallet *auth.WalletClient, relay *Relay, states *authstate.Registry, cfg Config, logger *log.Logger) *Controller {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		generator: generator,
		shared:    shared,
		wallet:    wallet,
		relay:     relay,
		states:    states,
		cfg:       cfg,
		logger:    logger,
		pending:   make(map[string]*Attempt),
		locks:     make(map[string]*scopeLock),
	}
}

// BeginLogin opens the login window and points it at the wallet.
//
// The window is opened before any other work so it stays inside the user's
// gesture. A blocked window is reported as popup_blocked with nothing stored
// and nothing sent. A new attempt for scope supersedes any pending one.
func (c *Controller) BeginLogin(ctx context.Context, opener Opener, scope string, opts LoginOptions) (*Attempt, error) {
	win := opener.Open(c.wallet.LoadingURL(opts.Locale))
	if win == nil {
		metrics.LoginAttempts.WithLabelValues(string(auth.ErrPopupBlocked)).Inc()
		err := auth.NewError(auth.ErrPopupBlocked, "")
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return nil, err
	}

	creds, redirectURI, a, authErr := c.register(ctx, win, scope, opts)
	if authErr != nil {
		if opts.OnError != nil {
			opts.OnError(authErr)
		}
		return nil, authErr
	}

	authURL := c.wallet.AuthorizeURL(opts.Locale, redirectURI, creds)
	if err := win.Navigate(authURL); err != nil {
		a.finish("navigate_failed")
		navErr := auth.WrapError(auth.ErrNavigateFailed, "", fmt.Errorf("failed to navigate login window: %w", err))
		metrics.LoginAttempts.WithLabelValues(string(auth.ErrNavigateFailed)).Inc()
		if opts.OnError != nil {
			opts.OnError(navErr)
		}
		return nil, navErr
	}

	metrics.LoginAttempts.WithLabelValues("started").Inc()
	c.logger.WithFields(log.Fields{"scope": scope, "method": creds.CodeChallengeMethod}).Debug("wallet login started")
	return a, nil
}

// Pending returns the in-flight attempt for scope, if any.
func (c *Controller) Pending(scope string) *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[scope]
}

// register supersedes any pending attempt for scope, stores fresh PKCE
// values and arms the new attempt. Calls for one scope run one at a time so
// the stored values always belong to the attempt left pending.
func (c *Controller) register(ctx context.Context, win Window, scope string, opts LoginOptions) (auth.Credentials, string, *Attempt, *auth.Error) {
	unlock := c.lockScope(scope)
	defer unlock()

	creds := c.generator.Generate()
	a := &Attempt{
		controller: c,
		scope:      scope,
		state:      creds.State,
		window:     win,
		opts:       opts,
		done:       make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.pending[scope]
	c.pending[scope] = a
	metrics.PendingLogins.Inc()
	c.mu.Unlock()

	if prev != nil && prev.finish("superseded") {
		c.logger.WithField("scope", scope).Info("wallet login superseded by a newer attempt")
	}

	redirectURI := c.wallet.RedirectURI(opts.Locale)
	items := map[string]string{
		auth.KeyCodeVerifier: creds.CodeVerifier,
		auth.KeyOAuthState:   creds.State,
		auth.KeyRedirectURI:  redirectURI,
		// Written even when empty so an older attempt's value is overwritten.
		auth.KeyReturnURL: opts.ReturnURL,
	}
	if err := c.shared.SetItems(ctx, scope, items); err != nil {
		a.finish(string(auth.ErrStorageFailed))
		metrics.LoginAttempts.WithLabelValues(string(auth.ErrStorageFailed)).Inc()
		return creds, "", nil, auth.WrapError(auth.ErrStorageFailed, "", fmt.Errorf("failed to persist PKCE values: %w", err))
	}

	a.mu.Lock()
	if !a.finished {
		a.listener = c.relay.Listen(scope, a.accepts, a.onMessage)
		a.timer = time.AfterFunc(c.cfg.LoginTimeout, a.onTimeout)
	}
	a.mu.Unlock()

	return creds, redirectURI, a, nil
}

type scopeLock struct {
	mu   sync.Mutex
	refs int
}

// lockScope serializes logins for one scope and returns the unlock func.
func (c *Controller) lockScope(scope string) func() {
	c.mu.Lock()
	l, ok := c.locks[scope]
	if !ok {
		l = &scopeLock{}
		c.locks[scope] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, scope)
		}
		c.mu.Unlock()
	}
}

// Attempt is one in-flight login.
type Attempt struct {
	controller *Controller
	scope      string
	state      string
	window     Window
	opts       LoginOptions

	mu       sync.Mutex
	listener *Listener
	timer    *time.Timer
	finished bool

	once   sync.Once
	done   chan struct{}
	result string
}

// State returns the state parameter sent with this attempt.
func (a *Attempt) State() string { return a.state }

// Window returns the login window.
func (a *Attempt) Window() Window { return a.window }

// Done is closed when the attempt reaches any terminal outcome.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result names the terminal outcome: success, error, timeout, superseded,
// cancelled, storage_failed or navigate_failed.
// It is empty while the attempt is pending.
func (a *Attempt) Result() string {
	select {
	case <-a.done:
		return a.result
	default:
		return ""
	}
}

// Cancel abandons the attempt without invoking any callback.
func (a *Attempt) Cancel() {
	a.finish("cancelled")
}

// accepts ignores messages tagged with another attempt's state.
func (a *Attempt) accepts(m auth.Message) bool {
	return m.State == "" || m.State == a.state
}

func (a *Attempt) onMessage(m auth.Message) {
	switch m.Type {
	case auth.MessageSuccess:
		if !a.finish("success") {
			return
		}
		if a.controller.states != nil {
			a.controller.states.For(context.Background(), a.scope).OnLoginSuccess(m.User)
		}
		if a.opts.OnSuccess != nil {
			a.opts.OnSuccess(m.User)
		}
	default:
		if !a.finish("error") {
			return
		}
		code := auth.ErrorCode(m.Code)
		if code == "" {
			code = auth.ErrProviderError
			if m.Type == auth.MessageDenied {
				code = auth.ErrProviderDenied
			}
		}
		if a.opts.OnError != nil {
			a.opts.OnError(auth.NewError(code, m.Message))
		}
	}
}

func (a *Attempt) onTimeout() {
	if !a.finish("timeout") {
		return
	}
	a.controller.logger.WithFields(log.Fields{"scope": a.scope, "code": auth.ErrLoginTimeout}).Info("wallet login window did not report back")
	if a.opts.OnTimeout != nil {
		a.opts.OnTimeout()
	}
}

// finish releases everything the attempt holds. It reports whether this call
// was the one that ended the attempt.
func (a *Attempt) finish(result string) bool {
	finished := false
	a.once.Do(func() {
		finished = true
		a.result = result
		a.mu.Lock()
		a.finished = true
		listener, timer := a.listener, a.timer
		a.mu.Unlock()
		if listener != nil {
			listener.Remove()
		}
		if timer != nil {
			timer.Stop()
		}
		if !a.window.Closed() {
			_ = a.window.Close()
		}

		c := a.controller
		c.mu.Lock()
		if c.pending[a.scope] == a {
			delete(c.pending, a.scope)
		}
		c.mu.Unlock()

		metrics.PendingLogins.Dec()
		metrics.LoginsFinalized.WithLabelValues(result).Inc()
		close(a.done)
	})
	return finished
}
