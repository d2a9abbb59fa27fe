package session

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/app/token"
	"swiftchat/internal/app/transport"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/randx"
)

const (
	// DefaultKeepAliveInterval is how often a ping frame is sent while a channel is open.
	DefaultKeepAliveInterval = 25 * time.Second

	// DefaultDialTimeout bounds a single attempt to open the channel.
	DefaultDialTimeout = 10 * time.Second

	// MaxContentBytes is the largest chat message the session will send.
	MaxContentBytes = 5000

	// capacity of the serialized work queue.
	inboxSize = 64

	// lower bound of the ack expiry sweep period.
	minAckSweep = 10 * time.Millisecond
)

// Snapshot is a consistent view of the session state.
type Snapshot struct {
	State             ConnectionState
	UserID            string
	Username          string
	RoomID            string
	Pending           int
	ReconnectAttempts int
}

// machine owns the session state. Every transition runs on the loop goroutine:
// intents, transport callbacks and timer ticks are all funneled through it.
type machine struct {
	url               string
	opener            transport.Opener
	tokens            *token.Store
	policy            ReconnectPolicy
	acks              *AckTracker
	keepAliveInterval time.Duration
	ackTimeout        time.Duration
	dialTimeout       time.Duration
	rejoin            bool
	emit              func(Event)
	now               func() time.Time
	logger            zerolog.Logger

	inbox chan func()
	quit  chan struct{}
	done  chan struct{}

	// loop-owned state below

	state       ConnectionState
	userID      string
	username    string
	roomID      string // set only while InRoom
	joiningRoom string // target of the outstanding join_room
	rejoinRoom  string // room to join again once re-authenticated

	channel    transport.Channel
	dialCancel context.CancelFunc

	// epoch identifies the current channel. It is bumped whenever the channel is
	// abandoned, so callbacks from older channels are dropped.
	epoch uint64

	attempts int

	keepAlive      *time.Ticker
	keepAliveC     <-chan time.Time
	reconnectTimer *time.Timer
	reconnectC     <-chan time.Time
	ackSweep       *time.Ticker
	ackSweepC      <-chan time.Time
}

func (m *machine) run() {
	defer close(m.done)

	for {
		select {
		case fn := <-m.inbox:
			fn()

		case <-m.keepAliveC:
			m.onKeepAlive()

		case <-m.reconnectC:
			m.reconnectTimer, m.reconnectC = nil, nil
			m.onReconnectDue()

		case <-m.ackSweepC:
			m.onAckSweep()

		case <-m.quit:
			m.teardown("session closed")
			m.cancelReconnect()
			return
		}
	}
}

// call runs fn on the loop and waits for its result.
func (m *machine) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)

	select {
	case m.inbox <- func() { result <- fn() }:
	case <-m.quit:
		return errs.NewError(errs.ErrSessionClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-m.done:
		return errs.NewError(errs.ErrSessionClosed)
	}
}

// post queues fn for the loop. It is used by transport goroutines and reports
// false once the session is closed.
func (m *machine) post(fn func()) bool {
	select {
	case m.inbox <- fn:
		return true
	case <-m.quit:
		return false
	}
}

func (m *machine) setState(next ConnectionState) {
	prev := m.state
	if prev == next {
		return
	}
	m.state = next

	m.logger.Debug().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("State changed")

	m.emit(ConnectionStatusChanged{State: next, Previous: prev})
}

func (m *machine) snapshot() Snapshot {
	return Snapshot{
		State:             m.state,
		UserID:            m.userID,
		Username:          m.username,
		RoomID:            m.roomID,
		Pending:           m.acks.Len(),
		ReconnectAttempts: m.attempts,
	}
}

// connect is the connect() intent. It is a no-op unless the session is Disconnected.
func (m *machine) connect() error {
	if m.state != Disconnected {
		return nil
	}
	if _, ok := m.tokens.Get(); !ok {
		return errs.NewError(errs.ErrNoToken)
	}

	m.cancelReconnect()
	m.dial()
	return nil
}

// authenticate stores a fresh token and runs the handshake with it, reopening the
// channel if one is already up.
func (m *machine) authenticate(tok token.Token) error {
	if token.IsMissing(string(tok)) {
		return errs.NewError(errs.ErrNoToken)
	}
	if err := m.tokens.Set(context.Background(), tok); err != nil {
		return err
	}

	m.rejoinRoom = ""
	m.attempts = 0
	m.cancelReconnect()

	if m.state != Disconnected {
		m.teardown("re-authenticating")
		m.setState(Disconnected)
	}

	m.dial()
	return nil
}

func (m *machine) dial() {
	m.epoch++
	epoch := m.epoch

	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	m.dialCancel = cancel
	m.setState(Connecting)

	handler := transport.Handler{
		OnFrame: func(raw []byte) {
			m.post(func() {
				if epoch == m.epoch && m.channel != nil {
					m.onFrame(raw)
				}
			})
		},
		OnClose: func(code int, reason string) {
			m.post(func() {
				if epoch != m.epoch {
					m.logger.Debug().Int("close_code", code).Msg("Ignoring close of abandoned channel")
					return
				}
				m.onClose(code, reason)
			})
		},
		OnError: func(err error) {
			m.post(func() {
				if epoch == m.epoch {
					m.logger.Warn().Err(err).Msg("Transport error")
				}
			})
		},
	}

	m.logger.Info().Str("url", m.url).Int("attempt", m.attempts).Msg("Opening channel")

	go func() {
		ch, err := m.opener.Open(ctx, m.url, handler)
		cancel()
		if !m.post(func() { m.onOpened(epoch, ch, err) }) && ch != nil {
			_ = ch.Close()
		}
	}()
}

func (m *machine) onOpened(epoch uint64, ch transport.Channel, err error) {
	if epoch != m.epoch || m.state != Connecting {
		if ch != nil {
			_ = ch.Close()
		}
		m.logger.Debug().Msg("Discarding result of abandoned dial")
		return
	}
	m.dialCancel = nil

	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to open channel")
		m.onClose(websocket.CloseAbnormalClosure, err.Error())
		return
	}

	m.channel = ch
	m.setState(Connected)
	m.startKeepAlive()
	m.sendAuth()
}

func (m *machine) sendAuth() {
	tok, ok := m.tokens.Get()
	if !ok {
		m.failAuth("no token", errs.NewError(errs.ErrNoToken))
		return
	}

	claims, err := token.Decode(tok)
	if err != nil {
		m.failAuth("token could not be decoded", err)
		return
	}

	m.setState(Authenticating)
	if err := m.send(protocol.Auth(string(tok), claims.Subject)); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to send auth frame")
	}
}

// failAuth clears the token and stops. Without a fresh token nothing is retried.
func (m *machine) failAuth(reason string, cause error) {
	m.logger.Warn().Err(cause).Str("reason", reason).Msg("Authentication failed")

	if err := m.tokens.Clear(context.Background()); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear token after auth failure")
	}

	m.rejoinRoom = ""
	m.attempts = 0
	m.teardown("authentication failed")
	m.setState(Disconnected)

	err := cause
	if !errs.IsCode(err, errs.ErrAuthFailed) {
		err = errs.Wrap(errs.ErrAuthFailed, cause, reason)
	}
	m.emit(AuthFailed{Reason: reason, Err: err})
}

func (m *machine) send(frame protocol.Frame) error {
	if m.channel == nil {
		return errs.NewError(errs.ErrNotConnected)
	}

	raw, err := frame.Encode()
	if err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}

	return m.channel.Send(raw)
}

func (m *machine) onFrame(raw []byte) {
	in, err := protocol.Decode(raw)
	if err != nil {
		m.logger.Warn().Err(err).Bytes("frame", raw).Msg("Dropping unparseable frame")
		return
	}

	switch f := in.(type) {
	case protocol.AuthResult:
		m.onAuthResult(f)

	case protocol.RoomJoined:
		m.onRoomJoined(f)

	case protocol.MessageSent:
		m.onMessageSent(f)

	case protocol.ChatMessage:
		if !m.inCurrentRoom(f.RoomID) {
			m.logger.Debug().Str("room_id", f.RoomID).Msg("Dropping message for another room")
			return
		}
		m.emit(MessageReceived{
			RoomID:    m.roomID,
			MessageID: f.MessageID,
			UserID:    f.UserID,
			Username:  f.Username,
			Content:   f.Content,
			Timestamp: f.Timestamp,
		})

	case protocol.UserJoined:
		m.onPresence(true, f.Member)

	case protocol.UserLeft:
		m.onPresence(false, f.Member)

	case protocol.Pong:
		m.logger.Debug().Msg("Pong received")

	case protocol.ServerError:
		m.onServerError(f)

	case protocol.RoomCreated:
		m.emit(RoomListInvalidated{RoomID: f.RoomID, Name: f.Name})

	case protocol.Unrecognized:
		m.logger.Warn().Str("msg_type", f.Type).Msg("Ignoring unrecognized frame")
	}
}

func (m *machine) onAuthResult(f protocol.AuthResult) {
	if m.state != Authenticating {
		m.logger.Debug().Str("msg_type", string(f.Type)).Msg("Ignoring auth result outside handshake")
		return
	}

	if !f.Success {
		reason := f.Message
		if reason == "" {
			reason = "rejected by server"
		}
		m.failAuth(reason, errs.NewError(errs.ErrAuthFailed, reason))
		return
	}

	m.userID, m.username = f.UserID, f.Username
	if claims, err := m.tokens.Claims(); err == nil {
		if m.userID == "" {
			m.userID = claims.Subject
		}
		if m.username == "" {
			m.username = claims.Username
		}
	}

	m.attempts = 0
	m.setState(Authenticated)
	m.emit(SessionAuthenticated{UserID: m.userID, Username: m.username})

	if m.rejoin && m.rejoinRoom != "" {
		room := m.rejoinRoom
		m.logger.Info().Str("room_id", room).Msg("Rejoining room after reconnect")
		if err := m.join(room); err != nil {
			m.logger.Warn().Err(err).Str("room_id", room).Msg("Failed to rejoin room")
		}
	}
}

func (m *machine) onRoomJoined(f protocol.RoomJoined) {
	if m.state != JoiningRoom {
		m.logger.Debug().Str("room_id", f.RoomID).Msg("Ignoring unexpected room_joined")
		return
	}
	if f.RoomID != "" && f.RoomID != m.joiningRoom {
		m.logger.Warn().
			Str("room_id", f.RoomID).
			Str("expected", m.joiningRoom).
			Msg("Ignoring room_joined for another room")
		return
	}

	m.roomID, m.joiningRoom = m.joiningRoom, ""
	m.rejoinRoom = m.roomID
	m.setState(InRoom)
	m.emit(RoomJoined{RoomID: m.roomID})
}

func (m *machine) onMessageSent(f protocol.MessageSent) {
	item, err := m.acks.Resolve(MatchSpec{Kind: KindChatMessage, CorrelationID: f.LocalID})
	if err != nil {
		m.logger.Warn().Str("local_id", f.LocalID).Msg("Acknowledgement matches no pending send")
		return
	}

	m.emit(MessageAcked{
		LocalID:   item.LocalID,
		RoomID:    item.RoomID,
		MessageID: f.MessageID,
		Latency:   m.acks.Latency(item),
	})
	m.syncAckSweep()
}

func (m *machine) onPresence(joined bool, member protocol.Member) {
	if !m.inCurrentRoom(member.RoomID) {
		return
	}
	m.emit(PresenceChanged{
		Joined:   joined,
		RoomID:   m.roomID,
		UserID:   member.UserID,
		Username: member.Username,
	})
}

func (m *machine) onServerError(f protocol.ServerError) {
	switch m.state {
	case Authenticating:
		m.failAuth(f.Message, errs.NewError(errs.ErrAuthFailed, f.Message))

	case JoiningRoom:
		room := m.joiningRoom
		m.joiningRoom, m.rejoinRoom = "", ""
		m.setState(Authenticated)
		m.emit(RoomJoinFailed{RoomID: room, Reason: f.Message})

	default:
		m.emit(ServerError{Code: f.Code, Message: f.Message})
	}
}

func (m *machine) inCurrentRoom(roomID string) bool {
	return m.state == InRoom && (roomID == "" || roomID == m.roomID)
}

// joinRoom is the joinRoom(id) intent.
func (m *machine) joinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	switch m.state {
	case JoiningRoom:
		return nil

	case InRoom:
		if roomID == m.roomID {
			return nil
		}
		if err := m.leaveRoom(); err != nil {
			return err
		}

	case Authenticated:
		// ready to join

	default:
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	return m.join(roomID)
}

func (m *machine) join(roomID string) error {
	m.joiningRoom = roomID
	m.setState(JoiningRoom)
	return m.send(protocol.JoinRoom(roomID))
}

// leaveRoom is the leaveRoom() intent. Leaving while a join is outstanding abandons it.
func (m *machine) leaveRoom() error {
	var room string
	switch m.state {
	case InRoom:
		room = m.roomID
	case JoiningRoom:
		room = m.joiningRoom
	default:
		return errs.NewError(errs.ErrNotInRoom)
	}

	m.roomID, m.joiningRoom, m.rejoinRoom = "", "", ""
	m.setState(Authenticated)
	return m.send(protocol.LeaveRoom(room))
}

// sendMessage is the sendMessage(text) intent. It returns the local id of the pending send.
func (m *machine) sendMessage(content string) (string, error) {
	if m.state != InRoom {
		return "", errs.NewError(errs.ErrNotInRoom)
	}
	if strings.TrimSpace(content) == "" {
		return "", errs.NewError(errs.ErrMessageEmpty)
	}
	if len(content) > MaxContentBytes {
		return "", errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes)
	}

	localID := randx.LocalID()
	if _, err := m.acks.Register(localID, KindChatMessage, m.roomID); err != nil {
		return "", err
	}

	if err := m.send(protocol.SendChat(m.roomID, content, localID)); err != nil {
		m.acks.Expire(localID)
		return "", err
	}

	m.syncAckSweep()
	return localID, nil
}

// logout is the logout() intent. Nothing is emitted after it returns.
func (m *machine) logout() error {
	m.cancelReconnect()
	m.teardown("logged out")

	if err := m.tokens.Clear(context.Background()); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear token on logout")
	}

	m.userID, m.username, m.rejoinRoom = "", "", ""
	m.attempts = 0
	m.setState(Disconnected)

	m.logger.Info().Msg("Logged out")
	return nil
}

func (m *machine) onClose(code int, reason string) {
	wasAuthenticated := m.state.IsAuthenticated()

	m.logger.Info().
		Int("close_code", code).
		Str("reason", reason).
		Str("state", m.state.String()).
		Msg("Channel closed")

	if m.state == JoiningRoom {
		m.rejoinRoom = m.joiningRoom
	}

	m.teardown("connection closed")
	m.setState(Disconnected)

	m.attempts++
	action := m.policy.OnDisconnect(DisconnectReason{
		Code:             code,
		Reason:           reason,
		Attempt:          m.attempts,
		WasAuthenticated: wasAuthenticated,
	})

	if !action.Retry {
		m.logger.Warn().Int("attempt", m.attempts).Msg("Reconnect policy gave up")
		return
	}

	m.reconnectTimer = time.NewTimer(action.Delay)
	m.reconnectC = m.reconnectTimer.C
	m.emit(ReconnectScheduled{Attempt: m.attempts, Delay: action.Delay})
}

func (m *machine) onReconnectDue() {
	if m.state != Disconnected {
		return
	}
	if _, ok := m.tokens.Get(); !ok {
		m.logger.Info().Msg("No token, not reconnecting")
		return
	}
	m.dial()
}

func (m *machine) cancelReconnect() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	m.reconnectTimer, m.reconnectC = nil, nil
}

// teardown abandons the current channel and everything scoped to it. The caller
// sets the resulting state.
func (m *machine) teardown(reason string) {
	m.epoch++

	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}

	m.stopKeepAlive()

	if m.channel != nil {
		if err := m.channel.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("Channel close error")
		}
		m.channel = nil
	}

	m.roomID, m.joiningRoom = "", ""

	for _, item := range m.acks.Clear() {
		m.emit(MessageDropped{LocalID: item.LocalID, RoomID: item.RoomID, Reason: reason})
	}
	m.syncAckSweep()
}

func (m *machine) startKeepAlive() {
	if m.keepAliveInterval <= 0 {
		return
	}
	m.stopKeepAlive()
	m.keepAlive = time.NewTicker(m.keepAliveInterval)
	m.keepAliveC = m.keepAlive.C
}

func (m *machine) stopKeepAlive() {
	if m.keepAlive != nil {
		m.keepAlive.Stop()
	}
	m.keepAlive, m.keepAliveC = nil, nil
}

func (m *machine) onKeepAlive() {
	if !m.state.HasChannel() {
		return
	}
	if err := m.send(protocol.Ping()); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to send ping")
	}
}

// syncAckSweep runs the expiry ticker only while an ack timeout is configured and
// something is pending.
func (m *machine) syncAckSweep() {
	if m.ackTimeout <= 0 || m.acks.Len() == 0 {
		if m.ackSweep != nil {
			m.ackSweep.Stop()
		}
		m.ackSweep, m.ackSweepC = nil, nil
		return
	}
	if m.ackSweep != nil {
		return
	}

	period := m.ackTimeout / 4
	if period < minAckSweep {
		period = minAckSweep
	}
	m.ackSweep = time.NewTicker(period)
	m.ackSweepC = m.ackSweep.C
}

func (m *machine) onAckSweep() {
	for _, item := range m.acks.ExpireBefore(m.now().Add(-m.ackTimeout)) {
		m.logger.Warn().Str("local_id", item.LocalID).Msg("Pending send timed out")
		m.emit(MessageDropped{LocalID: item.LocalID, RoomID: item.RoomID, Reason: "acknowledgement timed out"})
	}
	m.syncAckSweep()
}
