package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// DefaultScopes are requested from the wallet on every login.
var DefaultScopes = []string{"profile:name", "profile:email", "profile:phone", "verification:read"}

const maxExchangeBody = 1 << 20

// WalletConfig describes the wallet identity provider and this application's origin.
type WalletConfig struct {
	WalletURL    string
	ClientID     string
	Scopes       []string
	PublicOrigin string
}

// WalletClient builds the URLs used by the wallet authorization flow.
type WalletClient struct {
	cfg WalletConfig
}

// NewWalletClient creates a new WalletClient.
func NewWalletClient(cfg WalletConfig) *WalletClient {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	cfg.WalletURL = strings.TrimRight(cfg.WalletURL, "/")
	cfg.PublicOrigin = strings.TrimRight(cfg.PublicOrigin, "/")
	return &WalletClient{cfg: cfg}
}

// Origin returns the application's public origin.
func (c *WalletClient) Origin() string {
	return c.cfg.PublicOrigin
}

// RedirectURI returns the callback URL registered with the wallet for locale.
func (c *WalletClient) RedirectURI(locale string) string {
	return fmt.Sprintf("%s/%s/auth/wallet/callback", c.cfg.PublicOrigin, locale)
}

// LoadingURL is the placeholder page the login window shows while credentials are prepared.
func (c *WalletClient) LoadingURL(locale string) string {
	return fmt.Sprintf("%s/%s/oauth/loading", c.cfg.WalletURL, locale)
}

// AuthorizeURL builds the wallet authorization URL for one attempt.
func (c *WalletClient) AuthorizeURL(locale, redirectURI string, creds Credentials) string {
	conf := &oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: redirectURI,
		Scopes:      c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL: fmt.Sprintf("%s/%s/oauth/authorize", c.cfg.WalletURL, locale),
		},
	}
	return conf.AuthCodeURL(creds.State,
		oauth2.SetAuthURLParam("code_challenge", creds.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", creds.CodeChallengeMethod),
	)
}

// ExchangeRequest carries the values the backend needs to redeem a code.
type ExchangeRequest struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
	// Cookies from the browser request, forwarded so the backend sees the
	// same credentials a browser fetch with credentials included would send.
	Cookies []*http.Cookie
}

// ExchangeResult is a successful token exchange.
type ExchangeResult struct {
	Token      string
	User       json.RawMessage
	SetCookies []*http.Cookie
}

// Exchanger redeems an authorization code for a token.
type Exchanger interface {
	Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error)
}

// BackendExchanger posts the code to the marketplace API.
type BackendExchanger struct {
	endpoint string
	client   *http.Client
}

// NewBackendExchanger creates an exchanger for the API rooted at apiURL.
func NewBackendExchanger(apiURL string, timeout time.Duration) *BackendExchanger {
	return &BackendExchanger{
		endpoint: strings.TrimRight(apiURL, "/") + "/auth/wallet/callback",
		client:   &http.Client{Timeout: timeout},
	}
}

// Exchange sends {code, code_verifier, redirect_uri} and parses the envelope
// {status, message?, data?: {token, user}}. Every failure is an *Error.
func (e *BackendExchanger) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	payload, err := json.Marshal(map[string]string{
		"code":          req.Code,
		"code_verifier": req.CodeVerifier,
		"redirect_uri":  req.RedirectURI,
	})
	if err != nil {
		return nil, WrapError(ErrExchangeFailed, "", fmt.Errorf("failed to marshal exchange request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, WrapError(ErrExchangeFailed, "", fmt.Errorf("failed to build exchange request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, WrapError(ErrExchangeFailed, "", fmt.Errorf("failed to call token exchange: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExchangeBody))
	if err != nil {
		return nil, WrapError(ErrExchangeFailed, "", fmt.Errorf("failed to read exchange response: %w", err))
	}

	var message string
	if gjson.ValidBytes(body) {
		message = gjson.GetBytes(body, "message").String()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, WrapError(ErrExchangeFailed, message, fmt.Errorf("token exchange returned status %d", resp.StatusCode))
	}
	if !gjson.ValidBytes(body) {
		return nil, WrapError(ErrExchangeFailed, "", fmt.Errorf("token exchange returned invalid JSON"))
	}
	if gjson.GetBytes(body, "status").String() == "error" {
		return nil, NewError(ErrExchangeFailed, message)
	}

	token := gjson.GetBytes(body, "data.token").String()
	if token == "" {
		return nil, NewError(ErrNoToken, "")
	}

	result := &ExchangeResult{
		Token:      token,
		SetCookies: resp.Cookies(),
	}
	if user := gjson.GetBytes(body, "data.user"); user.Exists() {
		result.User = json.RawMessage(user.Raw)
	}
	return result, nil
}
