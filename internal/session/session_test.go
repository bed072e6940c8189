package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-gateway/gateway/internal/backoff"
)

func TestParseURLDefaults(t *testing.T) {
	p, insecure, err := ParseURL("wss://csms.example.com/ocpp/CP1")
	require.NoError(t, err)
	assert.False(t, insecure)
	assert.Equal(t, 443, p.Port)
	assert.Equal(t, "/ocpp/CP1", p.Path)

	p2, insecure2, err := ParseURL("ws://10.0.0.1")
	require.NoError(t, err)
	assert.True(t, insecure2)
	assert.Equal(t, 80, p2.Port)
	assert.Equal(t, "/", p2.Path)
}

func TestParseURLRejectsBadScheme(t *testing.T) {
	_, _, err := ParseURL("http://csms.example.com")
	assert.Error(t, err)
}

var echoUpgrader = websocket.Upgrader{}

func echoServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := echoUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func newTestSession(t *testing.T, url string, cb Callbacks) *Session {
	t.Helper()
	cfg := Config{
		DeviceID:                "dev-1",
		URL:                     url,
		Subprotocol:             "ocpp2.0.1",
		ReconnectIntervalSec:    1,
		MaxReconnectIntervalSec: 2,
		ConnectTimeoutSec:       1,
	}
	policy := backoff.NewPolicy(time.Second, 2*time.Second)
	s, err := New(cfg, &policy, backoff.RealClock{}, nil, nil, nil, cb)
	require.NoError(t, err)
	return s
}

func TestSessionConnectsSendsAndReceives(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	received := make(chan []byte, 1)
	s := newTestSession(t, url, Callbacks{OnMessage: func(f []byte) { received <- f }})
	s.Connect()
	defer s.Close("test done")

	require.Eventually(t, func() bool { return s.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Send([]byte("hello")))

	select {
	case data := <-received:
		assert.Equal(t, "hello", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("expected echoed frame")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	s := newTestSession(t, url, Callbacks{})
	s.Connect()
	require.Eventually(t, func() bool { return s.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	s.Close("done")
	assert.Equal(t, StateClosed, s.State())

	err := s.Send([]byte("too late"))
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	s := newTestSession(t, url, Callbacks{})
	s.Connect()
	require.Eventually(t, func() bool { return s.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)

	s.Close("first")
	s.Close("second")
	assert.Equal(t, StateClosed, s.State())
}

func TestSessionQueuesFramesWhileDisconnected(t *testing.T) {
	cfg := Config{
		DeviceID:             "dev-queue",
		URL:                  "ws://127.0.0.1:1", // nothing listens here
		Subprotocol:          "ocpp2.0.1",
		ReconnectIntervalSec: 1,
		ConnectTimeoutSec:    1,
	}
	policy := backoff.NewPolicy(10*time.Millisecond, 20*time.Millisecond)
	s, err := New(cfg, &policy, backoff.RealClock{}, nil, nil, nil, Callbacks{})
	require.NoError(t, err)

	require.NoError(t, s.Send([]byte("queued-1")))
	s.qmu.Lock()
	depth := len(s.queue)
	s.qmu.Unlock()
	assert.Equal(t, 1, depth)
}
