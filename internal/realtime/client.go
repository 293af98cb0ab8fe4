package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pulseboard-realtime/internal/auth"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong before the peer is considered dead.
	pongWait = 60 * time.Second
	// Ping interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Clients only ever send identify frames, so inbound frames stay small.
	maxMessageSize = 4096
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errConnClosed     = errors.New("connection closed")
)

// clientMessage is the only client-initiated frame the protocol requires.
// Either userId or token carries the identity, depending on whether identify
// tokens are enforced.
type clientMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Client owns one websocket connection for its lifetime: it reads identify
// frames, writes dispatched events in arrival order, and detaches itself on
// any transport error so the registry never re-targets a dead connection.
type Client struct {
	id         string
	ws         *websocket.Conn
	dispatcher *Dispatcher
	identify   *auth.Service // nil means the raw userId is trusted
	log        *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(id string, ws *websocket.Conn, d *Dispatcher, identify *auth.Service, log *zap.Logger, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{
		id:         id,
		ws:         ws,
		dispatcher: d,
		identify:   identify,
		log:        log.With(zap.String("conn", id)),
		send:       make(chan []byte, buffer),
	}
}

func (c *Client) ID() string { return c.id }

// Send enqueues a frame for the write pump. A full buffer means the peer has
// stalled; the error lets the dispatcher detach the connection rather than
// block the fan-out.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close stops the write pump after it drains pending frames. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts the write pump and blocks reading the connection until it dies.
// The caller must have attached the client to the dispatcher first.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.dispatcher.Detach(c.id)
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read", zap.Error(err))
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debug("discard malformed frame", zap.Error(err))
		return
	}
	if msg.Type != "identify" {
		return
	}
	userID, err := c.resolveIdentity(msg)
	if err != nil {
		c.log.Warn("identify rejected", zap.Error(err))
		return
	}
	c.dispatcher.Identify(c.id, userID)
	c.log.Info("identified", zap.String("user", userID))
}

func (c *Client) resolveIdentity(msg clientMessage) (string, error) {
	if c.identify != nil {
		return c.identify.Verify(msg.Token)
	}
	if msg.UserID == "" {
		return "", errors.New("identify without userId")
	}
	return msg.UserID, nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.dispatcher.Detach(c.id)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.dispatcher.Detach(c.id)
				return
			}
		}
	}
}
