package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyclob/polyclob/pkg/errors"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid public", Config{URL: "wss://x/ws", Channels: []string{"book", "price"}}, true},
		{"valid user", Config{URL: "wss://x/ws", Channels: []string{"user"}, Authenticated: true}, true},
		{"missing url", Config{Channels: []string{"book"}}, false},
		{"no channels", Config{URL: "wss://x/ws"}, false},
		{"unknown channel", Config{URL: "wss://x/ws", Channels: []string{"nope"}}, false},
		{"user without auth", Config{URL: "wss://x/ws", Channels: []string{"user"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodeConfigError), "got %v", err)
			}
		})
	}
}

func TestNewSubscriberRejectsBadConfig(t *testing.T) {
	_, err := NewSubscriber(Config{URL: "wss://x/ws", Channels: []string{"bogus"}}, zap.NewNop())
	require.Error(t, err)
}

var upgrader = websocket.Upgrader{}

// feedServer upgrades, captures the subscribe frame, then plays the
// given frames before closing.
func feedServer(t *testing.T, frames []string, gotSub chan<- subscribeMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var sub subscribeMessage
		require.NoError(t, conn.ReadJSON(&sub))
		gotSub <- sub

		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		// Give the client a moment to drain before the close.
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeAndListen(t *testing.T) {
	gotSub := make(chan subscribeMessage, 1)
	srv := feedServer(t, []string{
		`{"event_type":"book","asset_id":"tok1","market":"0xc1"}`,
		`[{"event_type":"price_change","asset_id":"tok1"},{"event_type":"last_trade_price","asset_id":"tok2"}]`,
		`not even json`,
		`{"event_type":"tick_size_change","asset_id":"tok1"}`,
	}, gotSub)
	defer srv.Close()

	sub, err := NewSubscriber(Config{
		URL:      wsURL(srv),
		Channels: []string{"book", "price"},
		AssetIDs: []string{"tok1", "tok2"},
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sub.Connect(ctx))
	defer sub.Close()

	var events []Event
	err = sub.Listen(ctx, func(ev Event) { events = append(events, ev) })
	require.Error(t, err) // server closed the connection

	frame := <-gotSub
	assert.Equal(t, "subscribe", frame.Type)
	assert.Equal(t, []string{"book", "price"}, frame.Channels)
	assert.Equal(t, []string{"tok1", "tok2"}, frame.AssetIDs)

	require.Len(t, events, 4)
	assert.Equal(t, "book", events[0].EventType)
	assert.Equal(t, "price_change", events[1].EventType)
	assert.Equal(t, "last_trade_price", events[2].EventType)
	assert.Equal(t, "tick_size_change", events[3].EventType)
	assert.JSONEq(t, `{"event_type":"book","asset_id":"tok1","market":"0xc1"}`, string(events[0].Raw))
}

func TestListenWithoutConnect(t *testing.T) {
	sub, err := NewSubscriber(Config{URL: "wss://x/ws", Channels: []string{"book"}}, zap.NewNop())
	require.NoError(t, err)

	err = sub.Listen(context.Background(), func(Event) {})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeWSError))
}

func TestListenStopsOnContextCancel(t *testing.T) {
	gotSub := make(chan subscribeMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var sub subscribeMessage
		require.NoError(t, conn.ReadJSON(&sub))
		gotSub <- sub
		// Hold the connection open without sending anything.
		conn.ReadMessage() //nolint:errcheck
	}))
	defer srv.Close()

	sub, err := NewSubscriber(Config{URL: wsURL(srv), Channels: []string{"book"}}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sub.Connect(ctx))
	defer sub.Close()
	<-gotSub

	done := make(chan error, 1)
	go func() { done <- sub.Listen(ctx, func(Event) {}) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not stop on cancel")
	}
}

func TestStatusTransitions(t *testing.T) {
	gotSub := make(chan subscribeMessage, 1)
	srv := feedServer(t, nil, gotSub)
	defer srv.Close()

	sub, err := NewSubscriber(Config{URL: wsURL(srv), Channels: []string{"book"}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, StatusDisconnected, sub.Status())

	require.NoError(t, sub.Connect(context.Background()))
	assert.Equal(t, StatusConnected, sub.Status())
	<-gotSub

	require.NoError(t, sub.Close())
	assert.Equal(t, StatusDisconnected, sub.Status())
}

func TestConnectFailureSetsErrorStatus(t *testing.T) {
	sub, err := NewSubscriber(Config{URL: "ws://127.0.0.1:1/ws", Channels: []string{"book"}}, zap.NewNop())
	require.NoError(t, err)

	err = sub.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, sub.Status())
}

func TestRunStopsOnCancelDuringBackoff(t *testing.T) {
	sub, err := NewSubscriber(Config{URL: "ws://127.0.0.1:1/ws", Channels: []string{"book"}}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, func(Event) {}) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "error", StatusError.String())
}
