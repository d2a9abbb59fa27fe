package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
)

const testSecret = "relay-test-secret"

func startRelay(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.ServeConn(conn, testSecret)
	}))

	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func issueToken(t *testing.T, userID, username string) string {
	t.Helper()

	tok, err := jwt.GenerateToken(&jwt.Payload{
		StandardClaims: gojwt.StandardClaims{Subject: userID},
		Username:       username,
	}, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialPeer(t *testing.T, url string) *peer {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &peer{t: t, conn: conn}
}

func (p *peer) send(frame protocol.Frame) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(frame))
}

func (p *peer) next() protocol.ServerFrame {
	p.t.Helper()

	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame protocol.ServerFrame
	require.NoError(p.t, p.conn.ReadJSON(&frame))
	return frame
}

// expect reads frames until one of the given kind arrives.
func (p *peer) expect(kind protocol.Kind) protocol.ServerFrame {
	p.t.Helper()

	for range 50 {
		frame := p.next()
		if frame.Data.Type == kind {
			return frame
		}
	}
	p.t.Fatalf("no %s frame received", kind)
	return protocol.ServerFrame{}
}

func (p *peer) authenticate(userID, username string) {
	p.t.Helper()

	p.send(protocol.Auth(issueToken(p.t, userID, username), userID))
	frame := p.expect(protocol.KindAuthResponse)
	require.True(p.t, frame.Success, frame.Message)
}

func TestAuthHandshake(t *testing.T) {
	_, url := startRelay(t)
	p := dialPeer(t, url)

	p.send(protocol.Auth(issueToken(t, "u-1", "alice"), "u-1"))
	frame := p.expect(protocol.KindAuthResponse)

	assert.True(t, frame.Success)
	assert.Equal(t, "WebSocket authentication successful", frame.Message)
	assert.Equal(t, "connected", frame.Data.Status)
	assert.Equal(t, "u-1", frame.Data.UserID)
	assert.Equal(t, "alice", frame.Data.Username)
}

func TestAuthRejected(t *testing.T) {
	_, url := startRelay(t)

	testCases := []struct {
		name  string
		frame protocol.Frame
	}{
		{name: "missing token", frame: protocol.Auth("", "")},
		{name: "garbage token", frame: protocol.Auth("not.a.jwt", "")},
		{name: "user id mismatch", frame: protocol.Auth(issueToken(t, "u-1", "alice"), "u-2")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := dialPeer(t, url)
			p.send(tc.frame)

			frame := p.expect(protocol.KindAuthResponse)
			assert.False(t, frame.Success)
			assert.Equal(t, "failed", frame.Data.Status)
			assert.NotEmpty(t, frame.Message)
		})
	}
}

func TestFramesBeforeAuthRejected(t *testing.T) {
	_, url := startRelay(t)
	p := dialPeer(t, url)

	p.send(protocol.JoinRoom("ABCDEF"))
	frame := p.expect(protocol.KindError)

	assert.False(t, frame.Success)
	assert.Equal(t, errs.ErrNotAuthenticated, frame.Data.Code)
}

func TestPingPong(t *testing.T) {
	_, url := startRelay(t)
	p := dialPeer(t, url)

	p.send(protocol.Ping())
	frame := p.next()
	assert.Equal(t, protocol.KindPong, frame.Data.Type)
}

func TestJoinAndChat(t *testing.T) {
	hub, url := startRelay(t)

	room, cerr := hub.CreateRoom("general", "", "u-a")
	require.Nil(t, cerr)

	a := dialPeer(t, url)
	a.authenticate("u-a", "alice")
	b := dialPeer(t, url)
	b.authenticate("u-b", "bob")

	a.send(protocol.JoinRoom(room.ID))
	joined := a.expect(protocol.KindRoomJoined)
	assert.Equal(t, "Room joined successfully", joined.Message)
	assert.Equal(t, room.ID, joined.Data.RoomID)
	assert.Equal(t, "u-a", joined.Data.UserID)

	b.send(protocol.JoinRoom(room.ID))
	b.expect(protocol.KindRoomJoined)

	presence := a.expect(protocol.KindUserJoined)
	assert.Equal(t, "u-b", presence.Data.UserID)
	assert.Equal(t, "bob", presence.Data.Username)

	a.send(protocol.SendChat(room.ID, "hello bob", "local-1"))

	ack := a.expect(protocol.KindMessageSent)
	assert.Equal(t, "Message sent successfully", ack.Message)
	assert.Equal(t, "local-1", ack.Data.LocalID)
	assert.Equal(t, "hello bob", ack.Data.Content)
	assert.NotEmpty(t, ack.Data.MessageID)
	assert.NotZero(t, ack.Data.Timestamp)

	received := b.expect(protocol.KindMessageReceived)
	assert.Equal(t, "hello bob", received.Data.Content)
	assert.Equal(t, "u-a", received.Data.UserID)
	assert.Equal(t, ack.Data.MessageID, received.Data.MessageID)

	// the legacy spelling without a room id goes to the current room
	require.NoError(t, b.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_message","content":"hi alice"}`)))
	b.expect(protocol.KindMessageSent)
	assert.Equal(t, "hi alice", a.expect(protocol.KindMessageReceived).Data.Content)

	history, cerr := hub.Messages(room.ID)
	require.Nil(t, cerr)
	require.Len(t, history, 2)
	assert.Equal(t, "hello bob", history[0].Content)
	assert.Equal(t, "bob", history[1].Username)

	assert.Equal(t, 2, room.Info().MemberCount)
}

func TestRejoinSameRoomDoesNotBroadcast(t *testing.T) {
	hub, url := startRelay(t)
	room, _ := hub.CreateRoom("general", "", "")

	a := dialPeer(t, url)
	a.authenticate("u-a", "alice")
	b := dialPeer(t, url)
	b.authenticate("u-b", "bob")

	a.send(protocol.JoinRoom(room.ID))
	a.expect(protocol.KindRoomJoined)
	b.send(protocol.JoinRoom(room.ID))
	b.expect(protocol.KindRoomJoined)
	a.expect(protocol.KindUserJoined)

	b.send(protocol.JoinRoom(room.ID))
	b.expect(protocol.KindRoomJoined)

	b.send(protocol.SendChat(room.ID, "after rejoin", "l-1"))
	next := a.next()
	assert.Equal(t, protocol.KindMessageReceived, next.Data.Type)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, url := startRelay(t)
	p := dialPeer(t, url)
	p.authenticate("u-1", "alice")

	p.send(protocol.JoinRoom("nope00"))
	frame := p.expect(protocol.KindError)
	assert.Equal(t, errs.ErrRoomNotFound, frame.Data.Code)
	assert.Equal(t, "Room not found.", frame.Message)
}

func TestChatValidation(t *testing.T) {
	hub, url := startRelay(t)
	room, _ := hub.CreateRoom("general", "", "")

	p := dialPeer(t, url)
	p.authenticate("u-1", "alice")

	p.send(protocol.SendChat(room.ID, "not joined yet", ""))
	assert.Equal(t, errs.ErrNotInRoom, p.expect(protocol.KindError).Data.Code)

	p.send(protocol.JoinRoom(room.ID))
	p.expect(protocol.KindRoomJoined)

	p.send(protocol.SendChat(room.ID, "   ", ""))
	assert.Equal(t, errs.ErrMessageEmpty, p.expect(protocol.KindError).Data.Code)

	p.send(protocol.SendChat(room.ID, strings.Repeat("x", MaxContentBytes+1), ""))
	tooLong := p.expect(protocol.KindError)
	assert.Equal(t, errs.ErrMessageContentTooLong, tooLong.Data.Code)
	assert.Contains(t, tooLong.Message, "5000")

	p.send(protocol.SendChat("other1", "wrong room", ""))
	assert.Equal(t, errs.ErrNotInRoom, p.expect(protocol.KindError).Data.Code)

	history, _ := hub.Messages(room.ID)
	assert.Empty(t, history)
}

func TestLeaveAndDisconnectBroadcastUserLeft(t *testing.T) {
	hub, url := startRelay(t)
	room, _ := hub.CreateRoom("general", "", "")

	a := dialPeer(t, url)
	a.authenticate("u-a", "alice")
	b := dialPeer(t, url)
	b.authenticate("u-b", "bob")
	c := dialPeer(t, url)
	c.authenticate("u-c", "carol")

	for _, p := range []*peer{a, b, c} {
		p.send(protocol.JoinRoom(room.ID))
		p.expect(protocol.KindRoomJoined)
	}

	b.send(protocol.LeaveRoom(room.ID))
	left := a.expect(protocol.KindUserLeft)
	assert.Equal(t, "u-b", left.Data.UserID)

	require.NoError(t, c.conn.Close())
	left = a.expect(protocol.KindUserLeft)
	assert.Equal(t, "u-c", left.Data.UserID)

	assert.Eventually(t, func() bool { return room.Info().MemberCount == 1 }, time.Second, 10*time.Millisecond)

	b.send(protocol.LeaveRoom(room.ID))
	assert.Equal(t, errs.ErrNotInRoom, b.expect(protocol.KindError).Data.Code)
}

func TestRoomCreatedAnnounced(t *testing.T) {
	hub, url := startRelay(t)

	p := dialPeer(t, url)
	p.authenticate("u-1", "alice")

	room, cerr := hub.CreateRoom("announced", "", "u-2")
	require.Nil(t, cerr)

	frame := p.expect(protocol.KindRoomCreated)
	assert.Equal(t, room.ID, frame.Data.RoomID)
	assert.Equal(t, "announced", frame.Data.Name)
}

func TestDeleteRoomNotifiesMembers(t *testing.T) {
	hub, url := startRelay(t)
	room, _ := hub.CreateRoom("doomed", "", "")

	p := dialPeer(t, url)
	p.authenticate("u-1", "alice")
	p.send(protocol.JoinRoom(room.ID))
	p.expect(protocol.KindRoomJoined)

	require.Nil(t, hub.DeleteRoom(room.ID))
	assert.Equal(t, errs.ErrRoomNotFound, p.expect(protocol.KindError).Data.Code)

	p.send(protocol.SendChat(room.ID, "anyone?", ""))
	assert.Equal(t, errs.ErrRoomNotFound, p.expect(protocol.KindError).Data.Code)

	_, cerr := hub.Messages(room.ID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)

	cerr = hub.DeleteRoom(room.ID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)
}

func TestHistoryIsBounded(t *testing.T) {
	hub, url := startRelay(t)
	room, _ := hub.CreateRoom("busy", "", "")

	p := dialPeer(t, url)
	p.authenticate("u-1", "alice")
	p.send(protocol.JoinRoom(room.ID))
	p.expect(protocol.KindRoomJoined)

	total := HistorySize + 5
	for i := range total {
		p.send(protocol.SendChat(room.ID, strings.Repeat("m", i+1), ""))
		p.expect(protocol.KindMessageSent)
	}

	history, _ := hub.Messages(room.ID)
	require.Len(t, history, HistorySize)
	assert.Len(t, history[0].Content, 6)
	assert.Len(t, history[HistorySize-1].Content, total)
}

func TestCreateRoomValidationAndListing(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Shutdown)

	_, cerr := hub.CreateRoom("   ", "", "")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNameInvalid, cerr.Code)

	_, cerr = hub.CreateRoom(strings.Repeat("n", MaxRoomNameLen+1), "", "")
	require.NotNil(t, cerr)

	first, _ := hub.CreateRoom("first", "the first one", "u-1")
	second, _ := hub.CreateRoom("second", "", "u-1")

	rooms := hub.Rooms()
	require.Len(t, rooms, 2)
	ids := []string{rooms[0].ID, rooms[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.NotNil(t, hub.GetRoom(first.ID))
	assert.Nil(t, hub.GetRoom("missing"))
}

func TestShutdownClosesConnections(t *testing.T) {
	hub, url := startRelay(t)

	p := dialPeer(t, url)
	p.authenticate("u-1", "alice")

	hub.Shutdown()

	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := p.conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())

	_, cerr := hub.CreateRoom("late", "", "")
	assert.NotNil(t, cerr)
}
