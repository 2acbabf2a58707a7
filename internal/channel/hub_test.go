package channel

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, handler Handler) (*Hub, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	server := httptest.NewServer(hub.Handler(ctx, handler))
	t.Cleanup(func() {
		cancel()
		hub.closeAll()
		server.Close()
	})
	return hub, strings.TrimPrefix(server.URL, "http://")
}

func dialTest(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestMessageJSONShapes(t *testing.T) {
	b, err := json.Marshal(Transcript(""))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"transcript","text":""}`, string(b))

	b, err = json.Marshal(Dispatch("c1", "open google", "open_url", []string{"https://www.google.com"}, false, "no display"))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"dispatch","id":"c1","trigger":"open google","kind":"open_url","args":["https://www.google.com"],"ok":false,"message":"no display"}`, string(b))

	b, err = json.Marshal(Status("capturing"))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"status","state":"capturing"}`, string(b))

	require.Equal(t, "", Message{}.TextValue())
	require.False(t, Message{}.Succeeded())
	require.True(t, Dispatch("", "", "", nil, true, "").Succeeded())
}

func TestHubGreetsWithCurrentStatus(t *testing.T) {
	hub, addr := startHub(t, nil)

	conn := dialTest(t, addr)
	require.Equal(t, Status("idle"), readMessage(t, conn))

	hub.Publish(Status("capturing"))
	require.Equal(t, Status("capturing"), readMessage(t, conn))

	late := dialTest(t, addr)
	require.Equal(t, Status("capturing"), readMessage(t, late))
}

func TestHubFansOutInOrder(t *testing.T) {
	hub, addr := startHub(t, nil)

	first := dialTest(t, addr)
	second := dialTest(t, addr)
	readMessage(t, first)
	readMessage(t, second)
	waitForClients(t, hub, 2)

	hub.Publish(Transcript("open google"))
	hub.Publish(Dispatch("id", "open google", "open_url", nil, true, "opened"))

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		require.Equal(t, TypeTranscript, msg.Type)
		require.Equal(t, "open google", msg.TextValue())
		msg = readMessage(t, conn)
		require.Equal(t, TypeDispatch, msg.Type)
		require.True(t, msg.Succeeded())
	}
}

func TestHubRoutesInboundToHandlerAndRepliesToSender(t *testing.T) {
	var calls atomic.Int32
	hub, addr := startHub(t, HandlerFunc(func(_ context.Context, msg Message) *Message {
		calls.Add(1)
		if msg.Type == TypeStartListen {
			reply := Status("busy")
			return &reply
		}
		return nil
	}))

	sender := dialTest(t, addr)
	other := dialTest(t, addr)
	readMessage(t, sender)
	readMessage(t, other)
	waitForClients(t, hub, 2)

	require.NoError(t, sender.WriteJSON(Message{Type: " START_LISTEN "}))
	require.Equal(t, Status("busy"), readMessage(t, sender))

	require.NoError(t, sender.WriteJSON(Message{Type: TypeStopListen}))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(Transcript("marker"))
	require.Equal(t, "marker", readMessage(t, other).TextValue())
}

func TestHubRepliesErrorOnMalformedFrame(t *testing.T) {
	_, addr := startHub(t, HandlerFunc(func(context.Context, Message) *Message {
		t.Error("handler must not see malformed frames")
		return nil
	}))

	conn := dialTest(t, addr)
	readMessage(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	msg := readMessage(t, conn)
	require.Equal(t, TypeError, msg.Type)
	require.Contains(t, msg.Error, "decode message")
}

func TestHubPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub, addr := startHub(t, nil)
	dialTest(t, addr)
	waitForClients(t, hub, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientQueueSize*20; i++ {
			hub.Publish(Transcript("spam"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}
}

func TestHubDropsDisconnectedSubscribers(t *testing.T) {
	hub, addr := startHub(t, nil)
	conn := dialTest(t, addr)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
	hub.Publish(Transcript("after close"))
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, addr := startHub(t, nil)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLocalOrigin(t *testing.T) {
	cases := map[string]bool{
		"":                        true,
		"null":                    true,
		"file://":                 true,
		"http://localhost:3000":   true,
		"http://127.0.0.1:5173":   true,
		"http://[::1]:8080":       true,
		"https://example.com":     false,
		"http://192.168.1.10:80":  false,
		"http://localhost.evil.io": false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		require.Equal(t, want, localOrigin(r), origin)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx, listener, nil) }()

	conn := dialTest(t, listener.Addr().String())
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
	waitForClients(t, hub, 0)
}
