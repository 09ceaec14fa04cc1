package hub

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdem-arena/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 65536
)

// ErrConnectionClosed is returned when sending on a closed connection
var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one authenticated WebSocket. Outbound frames go through
// a buffered send channel; a full buffer closes the connection rather than
// blocking the game.
type Connection struct {
	conn      *websocket.Conn
	send      chan *protocol.Message
	userID    string
	username  string
	isAdmin   bool
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	onMessage func(*Connection, *protocol.Message)
	onClose   func(*Connection)
}

func newConnection(conn *websocket.Conn, userID, username string, isAdmin bool, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		send:     make(chan *protocol.Message, 256),
		userID:   userID,
		username: username,
		isAdmin:  isAdmin,
		logger:   logger.WithPrefix("conn").With("user", username),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// UserID returns the authenticated user id
func (c *Connection) UserID() string { return c.userID }

// Username returns the authenticated username
func (c *Connection) Username() string { return c.username }

// IsAdmin reports whether the user carries the admin claim
func (c *Connection) IsAdmin() bool { return c.isAdmin }

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down once
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// Send queues a frame for the client. A full buffer closes the connection.
func (c *Connection) Send(msg *protocol.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "err", err)
			}
			return
		}

		if c.onMessage != nil {
			c.onMessage(c, &msg)
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write error", "err", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
