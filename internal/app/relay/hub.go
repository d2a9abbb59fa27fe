/*
Package relay is an in-memory chat server speaking the same real-time protocol as the client.

It backs the serve command, the load-test and debug harnesses, and the end-to-end tests.
This file defines the Hub, which owns every room and every live connection. Rooms are
created and deleted over REST; connections register with the Hub so they can be told
about new rooms and closed on shutdown.
*/
package relay

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/randx"
)

// MaxRoomNameLen caps a room name in characters.
const MaxRoomNameLen = 64

// RoomInfo is the REST view of a room.
type RoomInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MemberCount int       `json:"member_count"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Hub coordinates all rooms and connections.
type Hub struct {
	// rooms stores every live Room, keyed by room id.
	rooms map[string]*Room

	// clients is the set of open connections.
	clients map[*Client]struct{}

	// mu protects rooms and clients.
	mu sync.RWMutex

	// wg waits for room loops during shutdown.
	wg sync.WaitGroup

	closed bool

	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]*Room),
		clients: make(map[*Client]struct{}),
		logger:  logx.Component("hub"),
	}
}

// CreateRoom creates a room, starts its loop and announces it to every connection.
func (h *Hub) CreateRoom(name, description, createdBy string) (*Room, *errs.CustomError) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxRoomNameLen {
		return nil, errs.NewError(errs.ErrRoomNameInvalid)
	}

	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return nil, errs.NewError(errs.ErrUnknown)
	}

	var roomID string
	for {
		id, err := randx.RoomID()
		if err != nil {
			h.mu.Unlock()
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		if _, taken := h.rooms[id]; !taken {
			roomID = id
			break
		}
	}

	room := NewRoom(roomID, name, description, createdBy)
	h.rooms[roomID] = room

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		room.Run()
	}()

	h.mu.Unlock()

	h.logger.Info().Str("room_id", roomID).Str("name", name).Msg("New Room created and started.")

	h.announce(protocol.ServerData{Type: protocol.KindRoomCreated, RoomID: roomID, Name: name})
	return room, nil
}

// GetRoom retrieves a Room by id, or nil.
func (h *Hub) GetRoom(roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.rooms[roomID]
}

// Rooms lists every room, oldest first.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// DeleteRoom stops a room and forgets it. Members stay connected but lose their room.
func (h *Hub) DeleteRoom(roomID string) *errs.CustomError {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if ok {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	room.Stop()
	h.logger.Info().Str("room_id", roomID).Msg("Room successfully removed.")
	return nil
}

// Messages returns the recent history of a room.
func (h *Hub) Messages(roomID string) ([]Message, *errs.CustomError) {
	room := h.GetRoom(roomID)
	if room == nil {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}
	return room.History(), nil
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c)
}

// announce sends a frame to every authenticated connection.
func (h *Hub) announce(data protocol.ServerData) {
	frame, err := protocol.EncodeServer(true, "", data)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error marshaling announcement.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.Authenticated() {
			c.enqueue(frame)
		}
	}
}

// Shutdown stops every room and closes every connection.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	h.mu.Lock()
	h.closed = true
	rooms := h.rooms
	clients := h.clients
	h.rooms = make(map[string]*Room)
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
	}
	for c := range clients {
		c.Kick(CloseGoingAway, "server shutting down")
	}

	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}
