/*
Package relay is an in-memory chat server speaking the same real-time protocol as the client.

This file defines the Client, one upgraded WebSocket connection. ReadPump decodes client
frames and drives the Hub and Rooms; WritePump drains the send queue and keeps the
connection alive with pings.
*/
package relay

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong or any frame from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 64 << 10

	// MaxContentBytes is the maximum allowed size (in bytes) for message content.
	MaxContentBytes = 5000

	sendQueueSize = 256

	// CloseGoingAway is sent to every connection when the relay shuts down.
	CloseGoingAway = websocket.CloseGoingAway
)

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID   string
	Username string
}

// Client represents one WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	secret string

	// send queues encoded frames for WritePump. It is never closed; done ends the pump.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// mu guards identity, which the room loops read.
	mu       sync.RWMutex
	identity *Identity

	// room is the joined room. Only the ReadPump goroutine touches it.
	room *Room

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection. Tokens are verified with secret.
func NewClient(hub *Hub, conn *websocket.Conn, secret string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		secret: secret,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: logx.Logger().With().
			Str("component", "relay_client").
			Str("remote_addr", conn.RemoteAddr().String()).
			Logger(),
	}
}

// ServeConn runs a connection until it closes.
func (h *Hub) ServeConn(conn *websocket.Conn, secret string) {
	c := NewClient(h, conn, secret)
	if !h.register(c) {
		c.Kick(CloseGoingAway, "server shutting down")
		_ = conn.Close()
		return
	}

	go c.WritePump()
	c.ReadPump()
}

// Authenticated reports whether the connection has completed the auth handshake.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.identity != nil
}

// Identity returns the authenticated user, or the zero Identity.
func (c *Client) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.identity == nil {
		return Identity{}
	}
	return *c.identity
}

// ReadPump handles reading frames from the WebSocket connection until it fails,
// then cleans up.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	if err := extend(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		if err := extend(); err != nil {
			return
		}

		c.processInbound(raw)
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Client connection cleanup starting.")

	if c.room != nil {
		c.room.Leave(c)
		c.room = nil
	}

	c.hub.unregister(c)
	c.shutdown()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

func (c *Client) processInbound(raw []byte) {
	frame, err := protocol.DecodeClientFrame(raw)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid frame")
		c.sendError(err)
		return
	}

	switch frame.Type {
	case protocol.TypePing:
		c.sendFrame(true, "", protocol.ServerData{Type: protocol.KindPong})
		return
	case protocol.TypeAuth:
		c.handleAuth(frame)
		return
	}

	if !c.Authenticated() {
		c.sendError(errs.NewError(errs.ErrNotAuthenticated))
		return
	}

	switch frame.Type {
	case protocol.TypeJoinRoom:
		c.handleJoin(frame)

	case protocol.TypeLeaveRoom:
		c.handleLeave(frame)

	case protocol.TypeChatMessage:
		c.handleChat(frame)

	default:
		c.logger.Warn().Str("msg_type", string(frame.Type)).Msg("Client sent unsupported frame type")
		c.sendError(errs.NewError(errs.ErrProtocolViolation))
	}
}

func (c *Client) handleAuth(frame protocol.Frame) {
	fail := func(reason string) {
		c.logger.Warn().Str("reason", reason).Msg("WebSocket authentication rejected")
		c.sendFrame(false, reason, protocol.ServerData{
			Type:   protocol.KindAuthResponse,
			Status: "failed",
			Code:   errs.ErrAuthFailed,
		})
	}

	if strings.TrimSpace(frame.Token) == "" {
		fail("Missing token")
		return
	}

	payload, err := jwt.ParseToken(frame.Token, c.secret)
	if err != nil {
		fail("Invalid token")
		return
	}

	if frame.UserID != "" && frame.UserID != payload.UserID() {
		fail("User id does not match token")
		return
	}

	identity := &Identity{UserID: payload.UserID(), Username: payload.Username}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	c.logger.Info().Str("user_id", identity.UserID).Msg("WebSocket authentication successful")

	c.sendFrame(true, "WebSocket authentication successful", protocol.ServerData{
		Type:     protocol.KindAuthResponse,
		Status:   "connected",
		UserID:   identity.UserID,
		Username: identity.Username,
	})
}

func (c *Client) handleJoin(frame protocol.Frame) {
	if frame.RoomID == "" {
		c.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	room := c.hub.GetRoom(frame.RoomID)
	if room == nil {
		c.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}

	if c.room != nil && c.room != room {
		c.room.Leave(c)
		c.room = nil
	}

	if !room.Join(c) {
		c.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}
	c.room = room
}

func (c *Client) handleLeave(frame protocol.Frame) {
	if c.room == nil || (frame.RoomID != "" && frame.RoomID != c.room.ID) {
		c.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	c.room.Leave(c)
	c.room = nil
}

func (c *Client) handleChat(frame protocol.Frame) {
	if c.room == nil || (frame.RoomID != "" && frame.RoomID != c.room.ID) {
		c.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	if strings.TrimSpace(frame.Content) == "" {
		c.sendError(errs.NewError(errs.ErrMessageEmpty))
		return
	}

	if len(frame.Content) > MaxContentBytes {
		c.sendError(errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
		return
	}

	if !c.room.Post(c, frame.Content, frame.LocalID) {
		c.room = nil
		c.sendError(errs.NewError(errs.ErrRoomNotFound))
	}
}

// WritePump writes queued frames and periodic pings until the client shuts down.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing ping")
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// enqueue queues a frame without blocking. It reports false when the queue is full
// or the client is shutting down.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) sendFrame(success bool, message string, data protocol.ServerData) {
	frame, err := protocol.EncodeServer(success, message, data)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling frame for client")
		return
	}

	if !c.enqueue(frame) {
		c.logger.Warn().Int("queue_len", len(c.send)).Str("type", string(data.Type)).Msg("Client send channel full, dropping frame")
	}
}

// sendError reports err to the client as an error frame.
func (c *Client) sendError(err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		customErr = errs.NewError(errs.ErrUnknown, err)
	}

	c.sendFrame(false, customErr.Message, protocol.ServerData{
		Type: protocol.KindError,
		Code: customErr.Code,
	})
}

// Kick sends a close frame with the given code and shuts the connection down.
func (c *Client) Kick(code int, reason string) {
	c.logger.Info().
		Int("close_code", code).
		Str("reason", reason).
		Msg("Sending WS close message and closing connection.")

	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send WS close message.")
	}

	c.shutdown()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}
