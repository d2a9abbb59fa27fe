/*
Package relay is an in-memory chat server speaking the same real-time protocol as the client.

This file defines the Room, the hub of a single conversation. Its Run loop serializes
joins, leaves and posts, so membership and history change in one goroutine only.
*/
package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/randx"
)

// HistorySize is the number of recent messages a room keeps for GET /api/v1/messages.
const HistorySize = 100

// Message is a chat message accepted by a room.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

type post struct {
	client  *Client
	content string
	localID string
}

// Room represents a single chat room.
type Room struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time

	// members is the set of connections currently in the room.
	members map[*Client]struct{}

	// history holds at most HistorySize messages, oldest first.
	history []Message

	join  chan *Client
	leave chan *Client
	posts chan post

	// stopChan is closed by Stop; done is closed when Run has returned.
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// mu guards members and history for readers outside the Run loop.
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewRoom creates a Room. The caller starts Run.
func NewRoom(id, name, description, createdBy string) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		members:     make(map[*Client]struct{}),
		join:        make(chan *Client),
		leave:       make(chan *Client),
		posts:       make(chan post),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logx.Logger().With().Str("room_id", id).Logger(),
	}
}

// Stop terminates the Run loop. Members are told the room is gone.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info().Msg("Received stop signal. Stopping room.")
		close(r.stopChan)
	})
}

// Run is the room's event loop. It returns after Stop.
func (r *Room) Run() {
	defer func() {
		r.mu.Lock()
		members := r.members
		r.members = make(map[*Client]struct{})
		r.mu.Unlock()

		for c := range members {
			c.sendError(errs.NewError(errs.ErrRoomNotFound))
		}

		close(r.done)
		r.logger.Info().Msg("Room Run loop finished.")
	}()

	for {
		select {
		case c := <-r.join:
			r.handleJoin(c)

		case c := <-r.leave:
			r.handleLeave(c)

		case p := <-r.posts:
			r.handlePost(p)

		case <-r.stopChan:
			return
		}
	}
}

// Join adds c to the room. It reports false once the room has stopped.
func (r *Room) Join(c *Client) bool {
	select {
	case r.join <- c:
		return true
	case <-r.done:
		return false
	}
}

// Leave removes c from the room.
func (r *Room) Leave(c *Client) {
	select {
	case r.leave <- c:
	case <-r.done:
	}
}

// Post submits a message from c. It reports false once the room has stopped.
func (r *Room) Post(c *Client, content, localID string) bool {
	select {
	case r.posts <- post{client: c, content: content, localID: localID}:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) handleJoin(c *Client) {
	identity := c.Identity()

	r.mu.Lock()
	_, already := r.members[c]
	r.members[c] = struct{}{}
	total := len(r.members)
	r.mu.Unlock()

	c.sendFrame(true, "Room joined successfully", protocol.ServerData{
		Type:     protocol.KindRoomJoined,
		RoomID:   r.ID,
		Name:     r.Name,
		UserID:   identity.UserID,
		Username: identity.Username,
	})

	if already {
		return
	}

	r.logger.Info().
		Str("user_id", identity.UserID).
		Int("total_users", total).
		Msg("Client joined room.")

	r.broadcast(c, true, "", protocol.ServerData{
		Type:     protocol.KindUserJoined,
		RoomID:   r.ID,
		UserID:   identity.UserID,
		Username: identity.Username,
	})
}

func (r *Room) handleLeave(c *Client) {
	r.mu.Lock()
	_, ok := r.members[c]
	delete(r.members, c)
	total := len(r.members)
	r.mu.Unlock()

	if !ok {
		return
	}

	identity := c.Identity()
	r.logger.Info().
		Str("user_id", identity.UserID).
		Int("total_users", total).
		Msg("Client left room.")

	r.broadcast(c, true, "", protocol.ServerData{
		Type:     protocol.KindUserLeft,
		RoomID:   r.ID,
		UserID:   identity.UserID,
		Username: identity.Username,
	})
}

func (r *Room) handlePost(p post) {
	r.mu.RLock()
	_, member := r.members[p.client]
	r.mu.RUnlock()

	if !member {
		p.client.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	identity := p.client.Identity()
	msg := Message{
		ID:        randx.MessageID(),
		RoomID:    r.ID,
		UserID:    identity.UserID,
		Username:  identity.Username,
		Content:   p.content,
		Timestamp: time.Now().UnixMilli(),
	}

	r.mu.Lock()
	r.history = append(r.history, msg)
	if over := len(r.history) - HistorySize; over > 0 {
		r.history = append([]Message(nil), r.history[over:]...)
	}
	r.mu.Unlock()

	data := protocol.ServerData{
		RoomID:    r.ID,
		MessageID: msg.ID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}

	ack := data
	ack.Type = protocol.KindMessageSent
	ack.LocalID = p.localID
	p.client.sendFrame(true, "Message sent successfully", ack)

	data.Type = protocol.KindMessageReceived
	r.broadcast(p.client, true, "", data)
}

// broadcast sends a frame to every member except the sender.
// Members whose send queue is full are dropped from the room and disconnected.
func (r *Room) broadcast(sender *Client, success bool, message string, data protocol.ServerData) {
	frame, err := protocol.EncodeServer(success, message, data)
	if err != nil {
		r.logger.Error().Err(err).Str("type", string(data.Type)).Msg("Error marshaling frame for broadcast.")
		return
	}

	var slow []*Client

	r.mu.RLock()
	for c := range r.members {
		if c == sender {
			continue
		}
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	r.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	r.mu.Lock()
	for _, c := range slow {
		delete(r.members, c)
	}
	r.mu.Unlock()

	for _, c := range slow {
		r.logger.Warn().
			Str("user_id", c.Identity().UserID).
			Msg("Client send channel full or closed, removing from room.")
		go c.Kick(websocket.CloseTryAgainLater, "send queue full")
	}
}

// Info returns the REST view of the room.
func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RoomInfo{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		MemberCount: len(r.members),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
}

// History returns a copy of the recent messages, oldest first.
func (r *Room) History() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Message(nil), r.history...)
}
