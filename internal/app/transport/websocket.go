package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// DefaultReadTimeout is how long the channel may stay silent before it is declared dead.
	DefaultReadTimeout = 60 * time.Second

	// maximum allowed size (in bytes) of a frame sent by the server.
	maxFrameSize = 64 * 1024

	// capacity of the outbound queue.
	sendQueueSize = 256
)

// WebSocket opens channels with gorilla/websocket.
type WebSocket struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request.
	Header http.Header

	// ReadTimeout defaults to DefaultReadTimeout. Every inbound frame extends it.
	ReadTimeout time.Duration
}

var _ Opener = (*WebSocket)(nil)

// Open dials url and starts the read and write pumps.
func (w *WebSocket) Open(ctx context.Context, url string, h Handler) (Channel, error) {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, w.Header)
	if err != nil {
		if resp != nil {
			return nil, errs.Wrap(errs.ErrTransport, err, "handshake status "+resp.Status)
		}
		return nil, errs.Wrap(errs.ErrTransport, err, "dial failed")
	}

	readTimeout := w.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	c := &wsChannel{
		conn:        conn,
		handler:     h,
		readTimeout: readTimeout,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
		logger: logx.Logger().With().
			Str("component", "transport").
			Str("url", url).
			Logger(),
	}

	go c.writePump()
	go c.readPump()

	c.logger.Debug().Msg("Channel opened")

	return c, nil
}

type wsChannel struct {
	conn        *websocket.Conn
	handler     Handler
	readTimeout time.Duration

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

func (c *wsChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errs.NewError(errs.ErrNotConnected)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame")
		return errs.NewError(errs.ErrTransport, "send queue full")
	}
}

// Close starts a normal closure. The OnClose callback still fires once the read pump exits.
func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *wsChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readPump delivers inbound frames until the connection fails or is closed.
func (c *wsChannel) readPump() {
	c.conn.SetReadLimit(maxFrameSize)

	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	if err := extend(); err != nil {
		c.finish(err)
		return
	}

	c.conn.SetPongHandler(func(string) error { return extend() })
	c.conn.SetPingHandler(func(data string) error {
		if err := extend(); err != nil {
			return err
		}
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}

		if err := extend(); err != nil {
			c.finish(err)
			return
		}

		c.handler.frame(frame)
	}
}

// finish reports the closure and releases the write pump.
func (c *wsChannel) finish(err error) {
	code, reason := CloseStatus(err)

	if c.isClosed() {
		code, reason = websocket.CloseNormalClosure, "closed by client"
	} else if code == websocket.CloseAbnormalClosure {
		c.logger.Info().Err(err).Msg("Channel dropped")
		c.handler.failed(errs.Wrap(errs.ErrTransport, err, "connection dropped"))
	}

	_ = c.Close()
	_ = c.conn.Close()

	c.logger.Debug().Int("close_code", code).Str("reason", reason).Msg("Channel closed")
	c.handler.closed(code, reason)
}

// writePump writes queued frames to the connection.
func (c *wsChannel) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame")
				return
			}

		case <-c.done:
			closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing close message")
			}
			return
		}
	}
}

// CloseStatus extracts the close code and reason from a read error. Anything other
// than a received close frame is an abnormal closure (1006).
func CloseStatus(err error) (int, string) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, closeErr.Text
	}
	if err == nil {
		return websocket.CloseAbnormalClosure, ""
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
