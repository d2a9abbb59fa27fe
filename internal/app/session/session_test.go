package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/app/token"
	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
)

const connectedFrame = `{"success":true,"message":"WebSocket authentication successful","data":{"type":"connected","status":"connected","user_id":"u-1","username":"alice"}}`

type harness struct {
	s      *Session
	opener *fakeOpener
	tokens *token.Store
	sub    *Subscription
}

func validToken(t *testing.T, sub string) token.Token {
	t.Helper()
	raw, err := jwt.GenerateToken(&jwt.Payload{
		StandardClaims: gojwt.StandardClaims{Subject: sub},
		Username:       "alice",
	}, "secret", time.Hour)
	require.NoError(t, err)
	return token.Token(raw)
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{opener: newFakeOpener(), tokens: token.NewStore(nil)}
	opts := Options{
		URL:               "ws://test/ws",
		Opener:            h.opener,
		Tokens:            h.tokens,
		Policy:            FixedDelay{Delay: 20 * time.Millisecond},
		KeepAliveInterval: -1,
	}
	if mutate != nil {
		mutate(&opts)
	}

	h.s = New(opts)
	h.sub = h.s.Subscribe(512)
	t.Cleanup(func() { _ = h.s.Close() })
	return h
}

func (h *harness) waitFor(t *testing.T, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-h.sub.C:
			require.True(t, ok, "subscription closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func (h *harness) waitState(t *testing.T, state ConnectionState) {
	t.Helper()
	h.waitFor(t, func(ev Event) bool {
		changed, ok := ev.(ConnectionStatusChanged)
		return ok && changed.State == state
	})
}

func (h *harness) drain() []Event {
	var events []Event
	for {
		select {
		case ev := <-h.sub.C:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.s.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

// authenticated drives the session through the handshake on a fresh channel.
func (h *harness) authenticated(t *testing.T) *fakeChannel {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, validToken(t, "u-1")))
	require.NoError(t, h.s.Connect(ctx))

	ch := h.opener.next(t)
	auth := ch.expectFrame(t, protocol.TypeAuth)
	assert.Equal(t, "u-1", auth.UserID)
	assert.NotEmpty(t, auth.Token)

	ch.deliver(connectedFrame)
	h.waitFor(t, func(ev Event) bool { _, ok := ev.(SessionAuthenticated); return ok })
	return ch
}

func (h *harness) inRoom(t *testing.T, room string) *fakeChannel {
	t.Helper()
	ch := h.authenticated(t)

	require.NoError(t, h.s.JoinRoom(context.Background(), room))
	join := ch.expectFrame(t, protocol.TypeJoinRoom)
	assert.Equal(t, room, join.RoomID)

	ch.deliver(`{"success":true,"message":"Room joined successfully","data":{"type":"room_joined","room_id":"` + room + `","user_id":"u-1"}}`)
	h.waitFor(t, func(ev Event) bool { _, ok := ev.(RoomJoined); return ok })
	return ch
}

func TestConnectAuthenticateAndJoinRoom(t *testing.T) {
	h := newHarness(t, nil)

	h.inRoom(t, "R1")

	snap := h.snapshot(t)
	assert.Equal(t, InRoom, snap.State)
	assert.Equal(t, "R1", snap.RoomID)
	assert.Equal(t, "u-1", snap.UserID)
	assert.Equal(t, "alice", snap.Username)
}

func TestTransitionsFollowHandshakeOrder(t *testing.T) {
	h := newHarness(t, nil)
	watcher := h.s.Subscribe(512)

	h.inRoom(t, "R1")

	var states []ConnectionState
drain:
	for {
		select {
		case ev := <-watcher.C:
			if changed, ok := ev.(ConnectionStatusChanged); ok {
				states = append(states, changed.State)
			}
		default:
			break drain
		}
	}

	assert.Equal(t, []ConnectionState{Connecting, Connected, Authenticating, Authenticated, JoiningRoom, InRoom}, states)
	watcher.Unsubscribe()
}

func TestMalformedTokenFailsAuthentication(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, "not-a-jwt"))
	require.NoError(t, h.s.Connect(ctx))

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(AuthFailed); return ok })
	failed := ev.(AuthFailed)
	assert.True(t, errs.IsCode(failed.Err, errs.ErrMalformedToken))

	assert.Equal(t, Disconnected, h.snapshot(t).State)
	_, ok := h.tokens.Get()
	assert.False(t, ok)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), h.opener.dials.Load())
	for _, ev := range h.drain() {
		_, scheduled := ev.(ReconnectScheduled)
		assert.False(t, scheduled)
	}
}

func TestServerRejectsToken(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, validToken(t, "u-1")))
	require.NoError(t, h.s.Connect(ctx))

	ch := h.opener.next(t)
	ch.expectFrame(t, protocol.TypeAuth)
	ch.deliver(`{"type":"auth_response","success":false,"message":"token expired"}`)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(AuthFailed); return ok })
	assert.Equal(t, "token expired", ev.(AuthFailed).Reason)
	assert.Equal(t, Disconnected, h.snapshot(t).State)

	_, ok := h.tokens.Get()
	assert.False(t, ok)
}

func TestErrorFrameDuringHandshakeIsAuthFailure(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, validToken(t, "u-1")))
	require.NoError(t, h.s.Connect(ctx))

	ch := h.opener.next(t)
	ch.expectFrame(t, protocol.TypeAuth)
	ch.deliver(`{"type":"error","message":"Invalid token"}`)

	h.waitFor(t, func(ev Event) bool { _, ok := ev.(AuthFailed); return ok })
	assert.Equal(t, Disconnected, h.snapshot(t).State)
}

func TestConnectWithoutToken(t *testing.T) {
	h := newHarness(t, nil)

	err := h.s.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrNoToken))
	assert.Equal(t, Disconnected, h.snapshot(t).State)
}

func TestAuthenticateStoresTokenAndConnects(t *testing.T) {
	h := newHarness(t, nil)
	tok := validToken(t, "u-1")

	require.NoError(t, h.s.Authenticate(context.Background(), tok))

	got, ok := h.tokens.Get()
	require.True(t, ok)
	assert.Equal(t, tok, got)

	ch := h.opener.next(t)
	auth := ch.expectFrame(t, protocol.TypeAuth)
	assert.Equal(t, string(tok), auth.Token)
}

func TestCloseInRoomReconnectsAndRejoins(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Policy = FixedDelay{Delay: 50 * time.Millisecond} })
	ch := h.inRoom(t, "R1")

	dropped := time.Now()
	ch.drop(1006)

	h.waitState(t, Disconnected)
	snap := h.snapshot(t)
	assert.Equal(t, "", snap.RoomID)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(ReconnectScheduled); return ok })
	assert.Equal(t, 50*time.Millisecond, ev.(ReconnectScheduled).Delay)

	h.waitState(t, Connecting)
	assert.GreaterOrEqual(t, time.Since(dropped), 50*time.Millisecond)

	next := h.opener.next(t)
	next.expectFrame(t, protocol.TypeAuth)
	next.deliver(connectedFrame)

	join := next.expectFrame(t, protocol.TypeJoinRoom)
	assert.Equal(t, "R1", join.RoomID)
}

func TestRejoinCanBeDisabled(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableRejoin = true })
	ch := h.inRoom(t, "R1")

	ch.drop(1006)

	next := h.opener.next(t)
	next.expectFrame(t, protocol.TypeAuth)
	next.deliver(connectedFrame)
	h.waitFor(t, func(ev Event) bool { _, ok := ev.(SessionAuthenticated); return ok })

	next.expectSilence(t, 100*time.Millisecond)
	assert.Equal(t, Authenticated, h.snapshot(t).State)
}

func TestReconnectsIndefinitelyUntilLogout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Policy = FixedDelay{Delay: 5 * time.Millisecond} })
	h.opener.onOpen = func(c *fakeChannel) { c.drop(1006) }
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, validToken(t, "u-1")))
	require.NoError(t, h.s.Connect(ctx))

	require.Eventually(t, func() bool { return h.opener.dials.Load() >= 5 }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, h.s.Logout(ctx))
	dials := h.opener.dials.Load()
	h.drain()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dials, h.opener.dials.Load())
	assert.Empty(t, h.drain())
	assert.Equal(t, Disconnected, h.snapshot(t).State)
}

func TestOpenFailureSchedulesReconnect(t *testing.T) {
	h := newHarness(t, nil)
	h.opener.failWith = errors.New("connection refused")
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, validToken(t, "u-1")))
	require.NoError(t, h.s.Connect(ctx))

	h.waitState(t, Disconnected)
	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(ReconnectScheduled); return ok })
	assert.Equal(t, 1, ev.(ReconnectScheduled).Attempt)

	ev = h.waitFor(t, func(ev Event) bool { _, ok := ev.(ReconnectScheduled); return ok })
	assert.Equal(t, 2, ev.(ReconnectScheduled).Attempt)
}

func TestBackoffPolicyGivesUp(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Policy = &Backoff{InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, MaxAttempts: 2}
	})
	h.opener.failWith = errors.New("connection refused")
	ctx := context.Background()

	require.NoError(t, h.tokens.Set(ctx, validToken(t, "u-1")))
	require.NoError(t, h.s.Connect(ctx))

	require.Eventually(t, func() bool { return h.opener.dials.Load() == 3 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), h.opener.dials.Load())
	assert.Equal(t, Disconnected, h.snapshot(t).State)
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")
	ctx := context.Background()

	require.NoError(t, h.s.JoinRoom(ctx, "R1"))
	require.NoError(t, h.s.JoinRoom(ctx, "R1"))

	ch.expectSilence(t, 50*time.Millisecond)
	for _, ev := range h.drain() {
		_, joined := ev.(RoomJoined)
		assert.False(t, joined)
	}
	assert.Equal(t, "R1", h.snapshot(t).RoomID)
}

func TestSecondJoinWhileJoiningIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.authenticated(t)
	ctx := context.Background()

	require.NoError(t, h.s.JoinRoom(ctx, "R1"))
	require.NoError(t, h.s.JoinRoom(ctx, "R2"))

	join := ch.expectFrame(t, protocol.TypeJoinRoom)
	assert.Equal(t, "R1", join.RoomID)
	ch.expectSilence(t, 50*time.Millisecond)
	assert.Equal(t, JoiningRoom, h.snapshot(t).State)
}

func TestJoinOtherRoomLeavesFirst(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")

	require.NoError(t, h.s.JoinRoom(context.Background(), "R2"))

	leave := ch.expectFrame(t, protocol.TypeLeaveRoom)
	assert.Equal(t, "R1", leave.RoomID)
	join := ch.expectFrame(t, protocol.TypeJoinRoom)
	assert.Equal(t, "R2", join.RoomID)

	snap := h.snapshot(t)
	assert.Equal(t, JoiningRoom, snap.State)
	assert.Equal(t, "", snap.RoomID)
}

func TestRoomJoinFailedKeepsAuthenticated(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.authenticated(t)

	require.NoError(t, h.s.JoinRoom(context.Background(), "nope"))
	ch.expectFrame(t, protocol.TypeJoinRoom)
	ch.deliver(`{"success":false,"message":"Room not found","data":{"type":"error","code":2103}}`)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(RoomJoinFailed); return ok })
	assert.Equal(t, RoomJoinFailed{RoomID: "nope", Reason: "Room not found"}, ev)
	assert.Equal(t, Authenticated, h.snapshot(t).State)
}

func TestIntentsOutsideTheirStates(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	err := h.s.JoinRoom(ctx, "R1")
	assert.True(t, errs.IsCode(err, errs.ErrNotAuthenticated))

	err = h.s.LeaveRoom(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrNotInRoom))

	_, err = h.s.SendMessage(ctx, "hi")
	assert.True(t, errs.IsCode(err, errs.ErrNotInRoom))

	h.authenticated(t)
	_, err = h.s.SendMessage(ctx, "hi")
	assert.True(t, errs.IsCode(err, errs.ErrNotInRoom))
	assert.Equal(t, Authenticated, h.snapshot(t).State)
}

func TestSendMessageValidation(t *testing.T) {
	h := newHarness(t, nil)
	h.inRoom(t, "R1")
	ctx := context.Background()

	_, err := h.s.SendMessage(ctx, "   ")
	assert.True(t, errs.IsCode(err, errs.ErrMessageEmpty))

	_, err = h.s.SendMessage(ctx, strings.Repeat("x", MaxContentBytes+1))
	assert.True(t, errs.IsCode(err, errs.ErrMessageContentTooLong))

	assert.Equal(t, 0, h.snapshot(t).Pending)
}

func TestAcksResolveInSubmissionOrder(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"m1", "m2", "m3"} {
		id, err := h.s.SendMessage(ctx, text)
		require.NoError(t, err)
		frame := ch.expectFrame(t, protocol.TypeChatMessage)
		assert.Equal(t, text, frame.Content)
		assert.Equal(t, "R1", frame.RoomID)
		ids = append(ids, id)
	}
	assert.Equal(t, 3, h.snapshot(t).Pending)

	for range ids {
		ch.deliver(`{"success":true,"message":"Message sent successfully","data":{"type":"message_sent","room_id":"R1"}}`)
	}

	var acked []string
	for range ids {
		ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(MessageAcked); return ok })
		ack := ev.(MessageAcked)
		assert.GreaterOrEqual(t, ack.Latency, time.Duration(0))
		assert.Equal(t, "R1", ack.RoomID)
		acked = append(acked, ack.LocalID)
	}
	assert.Equal(t, ids, acked)
	assert.Equal(t, 0, h.snapshot(t).Pending)
}

func TestEchoedLocalIDMatchesExactly(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")
	ctx := context.Background()

	first, err := h.s.SendMessage(ctx, "m1")
	require.NoError(t, err)
	second, err := h.s.SendMessage(ctx, "m2")
	require.NoError(t, err)

	ch.deliver(`{"success":true,"data":{"type":"message_sent","room_id":"R1","message_id":"srv-2","local_id":"` + second + `"}}`)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(MessageAcked); return ok })
	assert.Equal(t, second, ev.(MessageAcked).LocalID)
	assert.Equal(t, "srv-2", ev.(MessageAcked).MessageID)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, h.snapshot(t).Pending)
}

func TestPendingSendsDroppedWhenChannelCloses(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Policy = FixedDelay{Delay: time.Hour} })
	ch := h.inRoom(t, "R1")

	id, err := h.s.SendMessage(context.Background(), "m1")
	require.NoError(t, err)

	ch.drop(1006)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(MessageDropped); return ok })
	assert.Equal(t, id, ev.(MessageDropped).LocalID)
	assert.Equal(t, 0, h.snapshot(t).Pending)
}

func TestAckTimeoutDropsPendingSend(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AckTimeout = 40 * time.Millisecond })
	h.inRoom(t, "R1")

	id, err := h.s.SendMessage(context.Background(), "m1")
	require.NoError(t, err)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(MessageDropped); return ok })
	assert.Equal(t, id, ev.(MessageDropped).LocalID)
	assert.Equal(t, InRoom, h.snapshot(t).State)
}

func TestLeaveRoom(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")
	ctx := context.Background()

	require.NoError(t, h.s.LeaveRoom(ctx))
	leave := ch.expectFrame(t, protocol.TypeLeaveRoom)
	assert.Equal(t, "R1", leave.RoomID)

	snap := h.snapshot(t)
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "", snap.RoomID)

	err := h.s.LeaveRoom(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrNotInRoom))
}

func TestInboundRoomTraffic(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")

	ch.deliver(`{"success":true,"data":{"type":"user_joined","room_id":"R1","user_id":"u-2","username":"bob"}}`)
	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(PresenceChanged); return ok })
	assert.Equal(t, PresenceChanged{Joined: true, RoomID: "R1", UserID: "u-2", Username: "bob"}, ev)

	ch.deliver(`{"type":"chat_message","room_id":"R1","user_id":"u-2","username":"bob","content":"hello"}`)
	ev = h.waitFor(t, func(ev Event) bool { _, ok := ev.(MessageReceived); return ok })
	assert.Equal(t, "hello", ev.(MessageReceived).Content)

	ch.deliver(`{"type":"user_left","room_id":"R1","user_id":"u-2","username":"bob"}`)
	ev = h.waitFor(t, func(ev Event) bool { _, ok := ev.(PresenceChanged); return ok })
	assert.False(t, ev.(PresenceChanged).Joined)

	ch.deliver(`{"type":"room_created","id":"R9","name":"general"}`)
	ev = h.waitFor(t, func(ev Event) bool { _, ok := ev.(RoomListInvalidated); return ok })
	assert.Equal(t, "R9", ev.(RoomListInvalidated).RoomID)

	ch.deliver(`{"type":"error","message":"slow down"}`)
	ev = h.waitFor(t, func(ev Event) bool { _, ok := ev.(ServerError); return ok })
	assert.Equal(t, "slow down", ev.(ServerError).Message)
	assert.Equal(t, InRoom, h.snapshot(t).State)
}

func TestBadFramesAreIgnored(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")

	ch.deliver(`garbage`)
	ch.deliver(`{"type":"typing"}`)
	ch.deliver(`{"success":true,"data":{"type":"pong"}}`)
	ch.deliver(`{"success":true,"data":{"type":"message_received","room_id":"R1","content":"still here"}}`)

	ev := h.waitFor(t, func(ev Event) bool { _, ok := ev.(MessageReceived); return ok })
	assert.Equal(t, "still here", ev.(MessageReceived).Content)
	assert.Equal(t, InRoom, h.snapshot(t).State)
}

func TestNoEventsAfterLogout(t *testing.T) {
	h := newHarness(t, nil)
	ch := h.inRoom(t, "R1")
	ctx := context.Background()

	require.NoError(t, h.s.Logout(ctx))
	h.drain()

	ch.deliver(`{"type":"chat_message","room_id":"R1","content":"late"}`)
	ch.deliver(`{"success":true,"data":{"type":"message_sent","room_id":"R1"}}`)
	ch.drop(1006)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, h.drain())

	snap := h.snapshot(t)
	assert.Equal(t, Disconnected, snap.State)
	assert.Equal(t, "", snap.UserID)
	_, ok := h.tokens.Get()
	assert.False(t, ok)
	assert.Equal(t, int32(1), h.opener.dials.Load())
}

func TestKeepAliveSendsPing(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.KeepAliveInterval = 20 * time.Millisecond })
	ch := h.authenticated(t)

	ch.expectFrame(t, protocol.TypePing)
	ch.deliver(`{"success":true,"data":{"type":"pong"}}`)
	assert.Equal(t, Authenticated, h.snapshot(t).State)
}

func TestCloseEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	tok := validToken(t, "u-1")
	require.NoError(t, h.tokens.Set(context.Background(), tok))

	require.NoError(t, h.s.Close())

	err := h.s.Connect(context.Background())
	assert.True(t, IsClosed(err))

	_, open := <-h.sub.C
	for open {
		_, open = <-h.sub.C
	}

	got, ok := h.tokens.Get()
	require.True(t, ok)
	assert.Equal(t, tok, got)
}

func TestFullBufferKeepsStateEvents(t *testing.T) {
	s := &Session{subs: make(map[*Subscription]struct{})}
	sub := s.Subscribe(2)

	for i := 0; i < 5; i++ {
		s.dispatch(MessageReceived{RoomID: "R1", Content: "spam"})
	}
	s.dispatch(ConnectionStatusChanged{State: Disconnected, Previous: Authenticated})
	s.dispatch(MessageReceived{RoomID: "R1", Content: "late"})
	s.dispatch(AuthFailed{Reason: "expired"})

	var got []Event
	for len(sub.C) > 0 {
		got = append(got, <-sub.C)
	}

	assert.Equal(t, []Event{
		ConnectionStatusChanged{State: Disconnected, Previous: Authenticated},
		AuthFailed{Reason: "expired"},
	}, got)
}

func TestChatEventsFillFreeSlots(t *testing.T) {
	s := &Session{subs: make(map[*Subscription]struct{})}
	sub := s.Subscribe(3)

	s.dispatch(RoomJoined{RoomID: "R1"})
	s.dispatch(MessageReceived{RoomID: "R1", Content: "a"})
	s.dispatch(MessageReceived{RoomID: "R1", Content: "b"})
	s.dispatch(MessageReceived{RoomID: "R1", Content: "c"})

	require.Len(t, sub.C, 3)
	assert.Equal(t, RoomJoined{RoomID: "R1"}, <-sub.C)
	assert.Equal(t, MessageReceived{RoomID: "R1", Content: "a"}, <-sub.C)
	assert.Equal(t, MessageReceived{RoomID: "R1", Content: "b"}, <-sub.C)
}
