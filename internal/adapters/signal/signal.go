package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/adapters/rtc"
	"github.com/salza80/jitsi-meet/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrRateLimited  = errors.New("rate limited")
	ErrClosed       = errors.New("connection closed")
)

// EventSink accepts decoded events and serves the current layout.
type EventSink interface {
	Enqueue(ev core.Event) error
	Snapshot() core.Snapshot
}

type EventsWSController struct {
	Sink       EventSink
	Hub        *Hub
	Limiter    *ClientRateLimiter
	ReadLimit  int64
	PingPeriod time.Duration
	RTC        webrtc.Configuration
}

// Ingest decodes one inbound message on behalf of client and queues it.
func (ctl *EventsWSController) Ingest(client string, data []byte) (core.Event, error) {
	if !ctl.Limiter.Allow(client) {
		return nil, ErrRateLimited
	}
	ev, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := ctl.Sink.Enqueue(ev); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", ev.Kind(), err)
	}
	return ev, nil
}

type wsConn struct {
	id     string
	client string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
	media  *rtc.Connection
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

// setMedia swaps in a new peer connection and closes the old one.
func (c *wsConn) setMedia(m *rtc.Connection) {
	c.mu.Lock()
	prev := c.media
	c.media = m
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (c *wsConn) Media() *rtc.Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.media
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	media := c.media
	c.media = nil
	c.mu.Unlock()
	if media != nil {
		media.Close()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *EventsWSController) HandleEvents(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		id:     uuid.NewString(),
		client: client,
		conn:   ws,
		send:   make(chan []byte, 64),
	}
	log.Info().Str("module", "signal").Str("client", client).Str("conn", conn.id).Msg("new WS connection")

	ctl.Hub.Send(conn, outbound{Type: msgSnapshot, Data: ctl.Sink.Snapshot()})
	ctl.Hub.Subscribe(conn.id, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
