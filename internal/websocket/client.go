package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"carelink-chat/pkg/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Client is one websocket session. Topic membership lives in the Hub.
type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte

	writeMu sync.Mutex
}

func NewClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// WriteLoop owns the write side of the connection. It pings every pingPeriod and closes
// the connection when ctx ends, a write fails, or the hub closes Send.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case msg, open := <-c.Send:
			if !open {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			err = c.write(websocket.TextMessage, msg)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Client) close() {
	c.writeMu.Lock()
	_ = c.Conn.Close()
	c.writeMu.Unlock()
}

// SendMessage queues a frame without blocking; frames are dropped when the session lags.
func (c *Client) SendMessage(msg []byte) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// SendFrame encodes and queues a control frame.
func (c *Client) SendFrame(f events.Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		return false
	}
	return c.SendMessage(data)
}
