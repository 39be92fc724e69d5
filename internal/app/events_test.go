package app

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"marketfront-go/internal/authstate"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, c *testClient, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: time.Second}
	return dialer.Dial("ws"+strings.TrimPrefix(c.server.URL, "http")+"/api/auth/events", header)
}

func TestEvents_StreamsStateChanges(t *testing.T) {
	app := newTestApp(t, &walletBackend{})
	c := newTestClient(t, app)

	c.authState()
	scope := c.scope()
	store := app.Registry.For(context.Background(), scope)

	ws, _, err := dialEvents(t, c, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return store.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	store.OnLoginSuccess([]byte(`{"name":"Aysel"}`))
	store.OnLogout()

	var ev authstate.Event
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, authstate.EventName, ev.Name)
	assert.JSONEq(t, `{"name":"Aysel"}`, string(ev.User))

	var logout authstate.Event
	require.NoError(t, ws.ReadJSON(&logout))
	assert.True(t, logout.Logout)
	assert.Empty(t, logout.User)
}

func TestEvents_UnsubscribesOnClose(t *testing.T) {
	app := newTestApp(t, &walletBackend{})
	c := newTestClient(t, app)

	c.authState()
	store := app.Registry.For(context.Background(), c.scope())

	ws, _, err := dialEvents(t, c, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return store.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	ws.Close()

	assert.Eventually(t, func() bool { return store.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEvents_RejectsForeignOrigin(t *testing.T) {
	app := newTestApp(t, &walletBackend{})
	c := newTestClient(t, app)

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	_, resp, err := dialEvents(t, c, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
