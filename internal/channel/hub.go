package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientQueueSize = 32
	writeTimeout    = 2 * time.Second
)

// Handler answers one inbound message. A nil reply sends nothing back.
type Handler interface {
	Handle(context.Context, Message) *Message
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Message) *Message

func (f HandlerFunc) Handle(ctx context.Context, msg Message) *Message {
	return f(ctx, msg)
}

type subscriber struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans published messages out to every connected subscriber. Each
// subscriber has its own bounded queue; a full queue drops the message for
// that subscriber only.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	status  Message
}

// NewHub returns a hub whose greeting status is idle.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     localOrigin,
		},
		clients: make(map[*subscriber]struct{}),
		status:  Status("idle"),
	}
}

// Publish queues msg for every subscriber without blocking. Status messages
// also become the greeting sent to new subscribers.
func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.Type == TypeStatus {
		h.status = msg
	}
	for c := range h.clients {
		h.enqueueLocked(c, msg)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) enqueueLocked(c *subscriber, msg Message) {
	select {
	case c.send <- msg:
	default:
		if h.logger != nil {
			h.logger.Debug("channel subscriber queue full; dropping message", "type", msg.Type)
		}
	}
}

func (h *Hub) reply(c *subscriber, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueueLocked(c, msg)
	}
}

func (h *Hub) register(conn *websocket.Conn) *subscriber {
	c := &subscriber{conn: conn, send: make(chan Message, clientQueueSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	c.send <- h.status
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*subscriber, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.unregister(c)
	}
}

// Handler returns the websocket endpoint. Inbound messages are passed to
// handler with ctx.
func (h *Hub) Handler(ctx context.Context, handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			if h.logger != nil {
				h.logger.Debug("channel upgrade rejected", "remote", r.RemoteAddr, "error", err.Error())
			}
			return
		}

		c := h.register(conn)
		go h.writeLoop(c)
		h.readLoop(ctx, c, handler)
	})
}

func (h *Hub) writeLoop(c *subscriber) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			_ = c.conn.Close()
			// Drain so publishers never see a full queue on a dead peer.
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
}

func (h *Hub) readLoop(ctx context.Context, c *subscriber, handler Handler) {
	defer h.unregister(c)

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if h.logger != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("channel subscriber disconnected", "error", err.Error())
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(c, ErrorMessage(fmt.Sprintf("decode message: %v", err)))
			continue
		}
		msg.Type = strings.ToLower(strings.TrimSpace(msg.Type))
		if handler == nil {
			continue
		}
		if resp := handler.Handle(ctx, msg); resp != nil {
			h.reply(c, *resp)
		}
	}
}

// Serve runs the websocket endpoint on listener until ctx ends.
func (h *Hub) Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	mux := http.NewServeMux()
	endpoint := h.Handler(ctx, handler)
	mux.Handle("/", endpoint)
	mux.Handle("/ws", endpoint)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		h.closeAll()
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve channel: %w", err)
	}
	return nil
}

// localOrigin admits non-browser clients, file:// pages and loopback pages.
func localOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || origin == "null" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme == "file" {
		return true
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
