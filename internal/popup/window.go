// Package popup drives the wallet login window from the opener's side: it
// opens the window, points it at the wallet, and finalizes the session when
// the window reports back through the relay.
package popup

// Window is a handle to a separate browsing context owned by the opener.
type Window interface {
	// Navigate points the window at target, replacing its current page.
	Navigate(target string) error
	// Close closes the window. Closing a closed window is a no-op.
	Close() error
	Closed() bool
}

// Opener opens windows. Open must be called synchronously from the user's
// action and returns nil when the window was blocked.
type Opener interface {
	Open(url string) Window
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url string) Window

func (f OpenerFunc) Open(url string) Window {
	return f(url)
}
