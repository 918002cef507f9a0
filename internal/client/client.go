package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"joker-briscola/internal/protocol"
)

var (
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrReconnectFailed = errors.New("reconnect attempts exhausted")
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Handler receives what the connection reads. *session.Session satisfies it.
type Handler interface {
	Deliver(msg protocol.Message)
	// Reconnected is called after a redial. A non-nil frame is written on
	// the new connection before anything queued.
	Reconnected() []byte
}

type Options struct {
	URL               string
	ReconnectAttempts int           // Dials tried after a lost connection
	ReconnectDelay    time.Duration // Pause before each of them
	PingInterval      time.Duration // Application ping, zero disables it
	Dialer            *websocket.Dialer
	Logger            *zap.Logger
}

// Client is the participant's side of the relay connection. Outgoing messages
// are queued and survive a reconnect.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	send   chan []byte
	retry  []byte // Frame the last connection failed to write
	logger *zap.Logger
}

func New(opts Options) *Client {
	c := &Client{
		opts:   opts,
		dialer: opts.Dialer,
		send:   make(chan []byte, sendBufferSize),
		logger: opts.Logger,
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "client"), zap.String("url", opts.URL))
	return c
}

// Send queues a message for the server. It never blocks.
func (c *Client) Send(msgType string, payload any) error {
	raw, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- raw:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run connects and feeds h until ctx is done. A lost connection is redialed
// up to ReconnectAttempts times, then Run gives up with ErrReconnectFailed.
func (c *Client) Run(ctx context.Context, h Handler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	c.logger.Info("connected")

	var first []byte
	for {
		err := c.serve(ctx, conn, h, first)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("connection lost", zap.Error(err))

		conn, err = c.redial(ctx)
		if err != nil {
			return err
		}
		c.logger.Info("reconnected")
		first = h.Reconnected()
	}
}

func (c *Client) redial(ctx context.Context) (*websocket.Conn, error) {
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}

		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
		if err == nil {
			return conn, nil
		}
		c.logger.Debug("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, fmt.Errorf("%w after %d tries", ErrReconnectFailed, c.opts.ReconnectAttempts)
}

// serve pumps one connection until it fails or ctx is done. A non-nil first
// is written before the queue is drained.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, h Handler, first []byte) error {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	if first != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
			return fmt.Errorf("write rejoin: %w", err)
		}
	}

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx, conn, done)
	}()
	defer func() {
		close(done)
		<-writerDone
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("malformed message", zap.Error(err))
			continue
		}
		h.Deliver(msg)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	var tick <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	ping, _ := protocol.NewMessage(protocol.TypePing, nil)

	for {
		data := c.retry
		c.retry = nil
		if data == nil {
			select {
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				conn.Close()
				return
			case <-done:
				return
			case <-tick:
				data = ping
			case data = <-c.send:
			}
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Debug("write failed", zap.Error(err))
			if !isPing(data, ping) {
				// Goes out ahead of the queue on the next connection.
				c.retry = data
			}
			conn.Close()
			return
		}
	}
}

func isPing(data, ping []byte) bool {
	return string(data) == string(ping)
}
