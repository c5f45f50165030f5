package fanout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// connection wraps one authenticated WebSocket peer. Room membership
// lives in the Hub's maps, not here, so the hub's single lock guards all
// shared state. The connection itself only owns its socket and its
// outbound buffer.
type connection struct {
	id     ConnectionID
	ws     *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	degraded atomic.Bool
	dropped  atomic.Int64
	closeCh  chan struct{}
}

func newConnection(id ConnectionID, ws *websocket.Conn, bufferSize int, logger *slog.Logger) *connection {
	return &connection{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, bufferSize),
		logger:  logger,
		closeCh: make(chan struct{}),
	}
}

// enqueue delivers data to the connection's outbound buffer. On overflow
// the oldest queued message is dropped and the connection is marked
// degraded, but it is never disconnected for this reason alone.
func (c *connection) enqueue(data []byte) {
	select {
	case c.send <- data:
		return
	default:
	}

	select {
	case <-c.send:
		c.dropped.Add(1)
		c.degraded.Store(true)
	default:
	}

	select {
	case c.send <- data:
	default:
	}
}

// readPump processes client frames (subscribe/unsubscribe/ping) and
// keepalive pong control frames, handing subscribe/unsubscribe requests
// to onMessage. It exits, and triggers unregister, when the socket closes
// or the read deadline lapses after two missed pongs.
func (c *connection) readPump(pongWait time.Duration, maxFrameBytes int64, onMessage func(*connection, clientMessage)) {
	defer close(c.closeCh)

	c.ws.SetReadLimit(maxFrameBytes)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			// An oversized frame is rejected with close code 1009;
			// gorilla only surfaces the error, the close frame is on us.
			if errors.Is(err, websocket.ErrReadLimit) {
				deadline := time.Now().Add(time.Second)
				c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseMessageTooBig, ""), deadline)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("fanout: malformed client frame", "connection_id", c.id, "error", err)
			continue
		}
		onMessage(c, msg)
	}
}

// writePump drains the outbound buffer onto the socket and sends
// keepalive pings every pingInterval. It exits when the buffer channel is
// closed (by the Hub on unregister) or a write fails.
func (c *connection) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *connection) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("fanout: failed to marshal outbound message", "connection_id", c.id, "error", err)
		return
	}
	c.enqueue(data)
}

// Degraded reports whether this connection has dropped at least one
// outbound message to buffer overflow.
func (c *connection) Degraded() bool {
	return c.degraded.Load()
}
