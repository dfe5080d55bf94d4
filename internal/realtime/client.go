package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Client message types (client to server).
const (
	msgSubscribe   = "subscribe-to-task"
	msgUnsubscribe = "unsubscribe-from-task"
	msgPing        = "ping"
)

// Server message types (server to client).
const (
	MsgConnectionAck = "connection-ack"
	MsgTaskEvent     = "task-event"
	MsgNotification  = "notification"
	msgPong          = "pong"
)

// clientMessage is the envelope for all client-to-server frames.
type clientMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id,omitempty"`
}

// Client is one live realtime connection, bound to exactly one authenticated
// user for its lifetime. It owns the websocket transport; the hub owns room
// membership.
type Client struct {
	UserID  string
	IsAdmin bool

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger
}

// NewClient wraps an upgraded websocket connection. The caller must Register
// the client with the hub and then start Run.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, isAdmin bool, log zerolog.Logger) *Client {
	return &Client{
		UserID:  userID,
		IsAdmin: isAdmin,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		log:     log,
	}
}

// Send queues a message for delivery, dropping it when the buffer is full.
func (c *Client) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Str("user_id", c.UserID).Msg("send buffer full, dropping message")
	}
}

// Run starts the read and write pumps and blocks until the connection closes.
// On return the client has been unregistered and the transport closed.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump processes subscribe/unsubscribe/ping frames until the transport
// closes. Transport close is the only disconnect path: the hub cleanup here
// implicitly drops all room memberships.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Str("user_id", c.UserID).Msg("unexpected close")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug().Err(err).Str("user_id", c.UserID).Msg("malformed client frame")
			continue
		}

		switch msg.Type {
		case msgSubscribe:
			if msg.TaskID != "" {
				c.hub.Join(TaskRoom(msg.TaskID), c)
			}
		case msgUnsubscribe:
			if msg.TaskID != "" {
				c.hub.Leave(TaskRoom(msg.TaskID), c)
			}
		case msgPing:
			if pong, err := json.Marshal(map[string]string{"type": msgPong}); err == nil {
				c.Send(pong)
			}
		default:
			c.log.Debug().Str("type", msg.Type).Str("user_id", c.UserID).Msg("unknown client frame")
		}
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
