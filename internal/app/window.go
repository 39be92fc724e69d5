package app

import (
	"sync"

	"marketfront-go/internal/popup"
)

// redirectWindow is the login window as seen from the server: the browser
// window that requested the start page. Navigating it answers that request
// with a redirect; the server cannot close it, the callback page does.
type redirectWindow struct {
	mu      sync.Mutex
	loading string
	target  string
	closed  bool
}

func (w *redirectWindow) Navigate(target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = target
	return nil
}

func (w *redirectWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *redirectWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Location returns where the window was sent: the authorize URL once
// navigated, else the loading page.
func (w *redirectWindow) Location() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.target != "" {
		return w.target
	}
	return w.loading
}

// redirectOpener hands out a single redirectWindow for one start request.
type redirectOpener struct {
	window *redirectWindow
}

func (o *redirectOpener) Open(url string) popup.Window {
	o.window = &redirectWindow{loading: url}
	return o.window
}
