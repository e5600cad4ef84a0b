package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/live/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // player pages are served from other origins
	},
}

// Upgrade upgrades an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// Options tunes heartbeat and buffering for a connection.
type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 65536
	}
	return o
}

// Dispatcher handles client invocations and connection teardown.
type Dispatcher interface {
	Dispatch(c *Client, msg WSMessage)
	Closed(c *Client)
}

// Client represents a single WebSocket connection.
// WebinarID, UserID and Role are zero until the connection is tracked in a webinar.
type Client struct {
	ID          string
	WebinarID   int64
	UserID      int64
	Role        models.ParticipantRole
	ConnectedAt time.Time

	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
	groups    map[string]struct{} // guarded by hub.mu
	opts      Options
	logger    *zap.Logger
}

// NewClient wraps an upgraded connection with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn, opts Options, logger *zap.Logger) *Client {
	opts = opts.withDefaults()
	return &Client{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		hub:         hub,
		conn:        conn,
		send:        make(chan WSMessage, opts.SendBuffer),
		done:        make(chan struct{}),
		groups:      make(map[string]struct{}),
		opts:        opts,
		logger:      logger,
	}
}

// Tracked reports whether the connection belongs to a webinar.
func (c *Client) Tracked() bool {
	return c.WebinarID > 0
}

// Send queues an event for this connection only.
func (c *Client) Send(event string, payload interface{}) bool {
	return c.hub.SendToClient(c.ID, event, payload)
}

// Close flushes queued messages and closes the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) enqueue(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Run pumps the connection until it closes. It blocks in the read loop.
func (c *Client) Run(d Dispatcher) {
	go c.writePump()
	c.readPump(d)
}

func (c *Client) readPump(d Dispatcher) {
	defer func() {
		d.Closed(c)
		c.hub.Unregister(c)
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.String("connection_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		d.Dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg WSMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}
