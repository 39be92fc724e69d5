package auth

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed wallet login so callers can react to it.
type ErrorCode string

const (
	// ErrPopupBlocked means the browser refused to open the login window.
	// It is a browser-settings problem, not a credential problem.
	ErrPopupBlocked ErrorCode = "popup_blocked"
	ErrInvalidState ErrorCode = "invalid_state"
	ErrMissingCode  ErrorCode = "missing_code"
	// ErrProviderDenied is reported when the user refused consent (error=access_denied).
	ErrProviderDenied ErrorCode = "provider_denied"
	ErrProviderError  ErrorCode = "provider_error"
	ErrExchangeFailed ErrorCode = "exchange_failed"
	ErrNoToken        ErrorCode = "no_token"
	ErrLoginTimeout   ErrorCode = "login_timeout"
	ErrStorageFailed  ErrorCode = "storage_failed"
	// ErrNavigateFailed means the window opened but could not be sent to the wallet.
	ErrNavigateFailed ErrorCode = "navigate_failed"
)

// Default user-facing messages for each code.
var defaultMessages = map[ErrorCode]string{
	ErrPopupBlocked:   "Popup was blocked. Please allow popups for this site and try again.",
	ErrInvalidState:   "Invalid state parameter",
	ErrMissingCode:    "No authorization code received",
	ErrProviderDenied: "Wallet authentication was cancelled",
	ErrProviderError:  "Wallet authentication failed",
	ErrExchangeFailed: "Wallet authentication failed",
	ErrNoToken:        "No token received",
	ErrLoginTimeout:   "Wallet login timed out",
	ErrStorageFailed:  "Wallet authentication failed",
	ErrNavigateFailed: "Could not open the wallet login page",
}

// Error is the single error type produced by the wallet login flow.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError builds an Error, falling back to the default message for the code.
func NewError(code ErrorCode, message string) *Error {
	if message == "" {
		message = defaultMessages[code]
	}
	return &Error{Code: code, Message: message}
}

// WrapError builds an Error carrying an underlying cause.
func WrapError(code ErrorCode, message string, err error) *Error {
	e := NewError(code, message)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}
