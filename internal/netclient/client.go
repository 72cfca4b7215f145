// internal/netclient/client.go
package netclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/davidl09/car-sim/pkg/protocol"
)

const (
	sendChSize        = 1024
	maxReconnect      = 5
	reconnectInterval = 2 * time.Second
	writeWait         = 10 * time.Second
)

// Handler receives every envelope the server sends.
type Handler func(env protocol.Envelope)

// outFrame is one outbound websocket frame.
type outFrame struct {
	data   []byte
	binary bool
}

// Client manages a game client's WebSocket connection with a single
// write goroutine per connection. Sends are fire-and-forget; a dropped
// connection is retried a bounded number of times before the client
// gives up and flags itself disconnected.
type Client struct {
	mu       sync.Mutex
	conn     *ws.Conn
	connDone chan struct{} // closed when the current conn is retired
	sendCh   chan outFrame
	done     chan struct{} // closed on shutdown
	closed   bool

	disconnected atomic.Bool

	wsURL   string
	handler Handler
	backoff time.Duration
	logger  zerolog.Logger
}

// New creates an unconnected client. handler may be nil.
func New(logger zerolog.Logger, handler Handler) *Client {
	return &Client{
		sendCh:  make(chan outFrame, sendChSize),
		done:    make(chan struct{}),
		handler: handler,
		backoff: reconnectInterval,
		logger:  logger.With().Str("component", "netclient").Logger(),
	}
}

// Dial connects to the server and starts the read/write loops.
func (c *Client) Dial(rawURL string) error {
	c.wsURL = rawURL

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.startConn(conn)
	return nil
}

func (c *Client) dialOnce() (*ws.Conn, error) {
	header := http.Header{}
	if u, err := url.Parse(c.wsURL); err == nil {
		scheme := "http"
		if u.Scheme == "wss" {
			scheme = "https"
		}
		header.Set("Origin", scheme+"://"+u.Host)
	}

	conn, _, err := ws.DefaultDialer.Dial(c.wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// startConn installs conn as the current connection and spawns its
// loops. Each loop is bound to this conn and exits when it is retired.
func (c *Client) startConn(conn *ws.Conn) {
	connDone := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.connDone = connDone
	c.mu.Unlock()

	go c.writeLoop(conn, connDone)
	go c.readLoop(conn, connDone)
}

// retire tears down conn and kicks off a reconnect. Only the first
// caller for the current conn does anything; followers and calls for an
// already-replaced conn are no-ops, so exactly one reconnect runs.
func (c *Client) retire(conn *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.connDone)
	c.mu.Unlock()

	_ = conn.Close()
	go c.reconnect()
}

// Disconnected reports whether the client has exhausted its reconnect
// attempts.
func (c *Client) Disconnected() bool {
	return c.disconnected.Load()
}

// Send marshals and queues an envelope. Non-blocking; drops if the
// channel is full.
func (c *Client) Send(msgType string, payload any) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.send(outFrame{data: data})
	return nil
}

// SendBinary queues a compact movement frame.
func (c *Client) SendBinary(data []byte) {
	c.send(outFrame{data: data, binary: true})
}

func (c *Client) send(frame outFrame) {
	select {
	case c.sendCh <- frame:
	default:
		c.logger.Warn().Msg("send channel full, dropping message")
	}
}

// writeLoop drains sendCh and writes frames to conn. It is the only
// writer of conn and returns when conn is retired or on shutdown.
func (c *Client) writeLoop(conn *ws.Conn, connDone <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-connDone:
			return
		case frame := <-c.sendCh:
			msgType := ws.TextMessage
			if frame.binary {
				msgType = ws.BinaryMessage
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn().Err(err).Msg("set write deadline failed")
				c.retire(conn)
				return
			}
			if err := conn.WriteMessage(msgType, frame.data); err != nil {
				c.logger.Warn().Err(err).Msg("write failed")
				c.retire(conn)
				return
			}
		}
	}
}

// readLoop reads envelopes from conn and hands them to the handler.
func (c *Client) readLoop(conn *ws.Conn, connDone <-chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case <-connDone:
			default:
				c.logger.Warn().Err(err).Msg("read failed")
			}
			c.retire(conn)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug().Str("raw", string(message)).Msg("unparseable message")
			continue
		}
		if c.handler != nil {
			c.handler(env)
		}
	}
}

// reconnect re-dials a bounded number of times. After the last failure
// the client stays down and flags itself disconnected; the game falls
// back to local-only play.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info().Int("attempt", attempt).Msg("reconnecting")
		time.Sleep(c.backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect dial failed")
			continue
		}

		c.startConn(conn)
		c.logger.Info().Int("attempt", attempt).Msg("reconnected")
		return
	}

	c.disconnected.Store(true)
	c.logger.Error().Int("maxAttempts", maxReconnect).Msg("reconnect failed, giving up")
}

// Close sends a close frame and shuts down all goroutines. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		// WriteControl is safe alongside a concurrent writeLoop write
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
