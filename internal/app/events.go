package app

import (
	"net/http"
	"time"

	"marketfront-go/internal/authstate"

	"github.com/gorilla/websocket"
)

const (
	// Buffered events per connection before new ones are dropped
	eventBufferSize = 16

	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 50 * time.Second

	// Clients only send control frames
	maxMessageSize = 512
)

// handleEvents streams the browser's authStateChanged events over a websocket.
func (a *Application) handleEvents(w http.ResponseWriter, r *http.Request) {
	scope, _ := getScopeFromContext(r)

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.WithError(err).Debug("events: websocket upgrade failed")
		return
	}

	store := a.Registry.For(r.Context(), scope)
	events := make(chan authstate.Event, eventBufferSize)
	done := make(chan struct{})

	unsubscribe := store.Subscribe(func(ev authstate.Event) {
		select {
		case events <- ev:
		case <-done:
		default:
			a.Logger.WithField("scope", scope).Warn("events: buffer full, dropping event")
		}
	})
	defer func() {
		unsubscribe()
		ws.Close()
		a.Registry.Forget(scope)
	}()

	go a.readEvents(ws, done)
	a.writeEvents(ws, events, done)
}

// readEvents discards client frames and closes done when the client goes away.
func (a *Application) readEvents(ws *websocket.Conn, done chan struct{}) {
	defer close(done)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.Logger.WithError(err).Debug("events: read error")
			}
			return
		}
	}
}

func (a *Application) writeEvents(ws *websocket.Conn, events <-chan authstate.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				a.Logger.WithError(err).Debug("events: write failed")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
