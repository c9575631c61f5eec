package websocket

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/entities"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Covers synthesized audio
	// replies.
	maxMessageSize = 4 * 1024 * 1024

	sendBuffer  = 256
	frameBuffer = 256
)

type writeData struct {
	messageType int
	payload     []byte
}

// Conn owns one reconnect-free connection for a session. Inbound traffic is
// exposed as a stream of frames; outbound sends are queued and written by a
// single pump so their order on the wire matches call order.
type Conn struct {
	ws     *websocket.Conn
	send   chan writeData
	frames chan entities.InboundFrame

	state atomic.Int32

	closeOnce sync.Once
	done      chan struct{}

	logger *zap.Logger
}

// Dial opens the session socket. When token is non-empty it is appended to
// the URL as a query parameter, which is how the backend authenticates
// socket upgrades.
func Dial(ctx context.Context, rawURL, token string, logger *zap.Logger) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse session url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	c := &Conn{
		send:   make(chan writeData, sendBuffer),
		frames: make(chan entities.InboundFrame, frameBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	c.state.Store(int32(entities.ConnConnecting))

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.state.Store(int32(entities.ConnClosed))
		close(c.frames)
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	c.ws = ws
	c.state.Store(int32(entities.ConnOpen))

	go c.writePump()
	go c.readPump()

	logger.Info("Session socket connected", zap.String("host", u.Host))
	return c, nil
}

// State returns the connection lifecycle state.
func (c *Conn) State() entities.ConnState {
	return entities.ConnState(c.state.Load())
}

// Frames yields inbound frames until the connection closes.
func (c *Conn) Frames() <-chan entities.InboundFrame {
	return c.frames
}

// SendText queues one JSON text frame. Dropped with a warning when the
// connection is not open; callers must not assume delivery.
func (c *Conn) SendText(payload []byte) {
	c.enqueue(websocket.TextMessage, payload)
}

// SendBinary queues one binary frame.
func (c *Conn) SendBinary(payload []byte) {
	c.enqueue(websocket.BinaryMessage, payload)
}

func (c *Conn) enqueue(messageType int, payload []byte) {
	if c.State() != entities.ConnOpen {
		c.logger.Warn("Send on non-open connection dropped",
			zap.Stringer("state", c.State()),
			zap.Int("size", len(payload)))
		return
	}
	select {
	case c.send <- writeData{messageType: messageType, payload: payload}:
	case <-c.done:
		c.logger.Warn("Send after connection teardown dropped",
			zap.Int("size", len(payload)))
	}
}

// Close tears down the connection. Safe to call multiple times and from any
// state.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(entities.ConnClosed))
		close(c.done)
		if c.ws != nil {
			deadline := time.Now().Add(writeWait)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = c.ws.Close()
		}
		c.logger.Info("Session socket closed")
	})
	return nil
}

// readPump pumps inbound frames from the socket to the frame channel.
func (c *Conn) readPump() {
	defer func() {
		c.state.Store(int32(entities.ConnClosed))
		close(c.frames)
		_ = c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("Session socket read failed", zap.Error(err))
			}
			return
		}

		var frame entities.InboundFrame
		switch messageType {
		case websocket.TextMessage:
			frame = entities.InboundFrame{Kind: entities.FrameText, Payload: message}
		case websocket.BinaryMessage:
			frame = entities.InboundFrame{Kind: entities.FrameBinary, Payload: message}
		default:
			c.logger.Warn("Received unknown frame type", zap.Int("type", messageType))
			continue
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

// writePump pumps queued sends to the socket and keeps the connection alive
// with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(message.messageType, message.payload); err != nil {
				c.logger.Error("Failed to write frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
