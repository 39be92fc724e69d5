package auth

import (
	"encoding/json"
	"errors"
)

// Message types exchanged between the login window and its opener.
const (
	MessageSuccess = "oauth_success"
	MessageError   = "oauth_error"
	MessageDenied  = "oauth_denied"
)

// ErrUnknownMessage is returned by ParseMessage for payloads without a known type.
var ErrUnknownMessage = errors.New("unrecognized message")

// Message is the cross-window contract posted by the login window.
type Message struct {
	Type    string          `json:"type"`
	User    json.RawMessage `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
	// Code is the ErrorCode of a failed attempt.
	Code string `json:"code,omitempty"`
	// State echoes the state of the attempt that produced the message, when known.
	State string `json:"state,omitempty"`
}

// Terminal reports whether m ends a login attempt.
func (m Message) Terminal() bool {
	switch m.Type {
	case MessageSuccess, MessageError, MessageDenied:
		return true
	}
	return false
}

// ParseMessage decodes data and rejects anything that is not a known message.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if !m.Terminal() {
		return Message{}, ErrUnknownMessage
	}
	if m.Type == MessageSuccess && len(m.User) == 0 {
		return Message{}, ErrUnknownMessage
	}
	return m, nil
}
