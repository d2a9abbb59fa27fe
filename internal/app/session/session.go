/*
Package session is the real-time chat session client.

A Session owns one persistent channel to the server. It runs the in-band auth
handshake, joins and leaves rooms, sends chat messages and tracks their
acknowledgements, and reconnects according to a ReconnectPolicy. Callers drive it
through intents and observe it through Subscribe; every state transition is
serialized on a single goroutine.
*/
package session

import (
	"context"
	"sync"
	"time"

	"swiftchat/internal/app/token"
	"swiftchat/internal/app/transport"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
)

// Options configures a Session. Only URL is required.
type Options struct {
	// URL of the real-time endpoint, e.g. ws://localhost:8080/ws.
	URL string

	// Opener defaults to a gorilla/websocket dialer.
	Opener transport.Opener

	// Tokens defaults to an in-memory store.
	Tokens *token.Store

	// Policy defaults to FixedDelay{DefaultReconnectDelay}.
	Policy ReconnectPolicy

	// KeepAliveInterval defaults to DefaultKeepAliveInterval; negative disables pings.
	KeepAliveInterval time.Duration

	// AckTimeout expires unacknowledged sends. Zero keeps them until teardown.
	AckTimeout time.Duration

	// DialTimeout defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// DisableRejoin stops the session from rejoining its room after a reconnect.
	DisableRejoin bool

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Session is the public surface of the chat client.
type Session struct {
	m *machine

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	closeOnce sync.Once
}

// New creates a Session and starts its loop. The session stays Disconnected until
// Connect or Authenticate is called.
func New(opts Options) *Session {
	if opts.Opener == nil {
		opts.Opener = &transport.WebSocket{}
	}
	if opts.Tokens == nil {
		opts.Tokens = token.NewStore(nil)
	}
	if opts.Policy == nil {
		opts.Policy = FixedDelay{Delay: DefaultReconnectDelay}
	}
	if opts.KeepAliveInterval == 0 {
		opts.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Session{subs: make(map[*Subscription]struct{})}

	s.m = &machine{
		url:               opts.URL,
		opener:            opts.Opener,
		tokens:            opts.Tokens,
		policy:            opts.Policy,
		acks:              NewAckTracker(opts.Clock),
		keepAliveInterval: opts.KeepAliveInterval,
		ackTimeout:        opts.AckTimeout,
		dialTimeout:       opts.DialTimeout,
		rejoin:            !opts.DisableRejoin,
		emit:              s.dispatch,
		now:               opts.Clock,
		logger:            logx.Component("session"),
		inbox:             make(chan func(), inboxSize),
		quit:              make(chan struct{}),
		done:              make(chan struct{}),
	}

	go s.m.run()

	return s
}

// Connect opens the channel and authenticates with the stored token. It returns as
// soon as the attempt has started; progress is reported through events.
func (s *Session) Connect(ctx context.Context) error {
	return s.m.call(ctx, s.m.connect)
}

// Authenticate stores tok and runs the handshake with it, reconnecting if needed.
func (s *Session) Authenticate(ctx context.Context, tok token.Token) error {
	return s.m.call(ctx, func() error { return s.m.authenticate(tok) })
}

// JoinRoom requests to join roomID, leaving the current room first if it differs.
func (s *Session) JoinRoom(ctx context.Context, roomID string) error {
	return s.m.call(ctx, func() error { return s.m.joinRoom(roomID) })
}

func (s *Session) LeaveRoom(ctx context.Context) error {
	return s.m.call(ctx, s.m.leaveRoom)
}

// SendMessage sends content to the current room and returns the local id that the
// matching MessageAcked or MessageDropped event will carry.
func (s *Session) SendMessage(ctx context.Context, content string) (string, error) {
	var localID string
	err := s.m.call(ctx, func() error {
		var err error
		localID, err = s.m.sendMessage(content)
		return err
	})
	return localID, err
}

// Logout closes the channel, cancels timers and pending sends, and clears the token.
// No event is delivered after Logout returns.
func (s *Session) Logout(ctx context.Context) error {
	return s.m.call(ctx, s.m.logout)
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.m.call(ctx, func() error {
		snap = s.m.snapshot()
		return nil
	})
	return snap, err
}

// Close stops the session without clearing the stored token. Subscriptions are closed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.m.quit)
		<-s.m.done

		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = true
		for sub := range s.subs {
			close(sub.ch)
			delete(s.subs, sub)
		}
	})
	return nil
}

// Subscription delivers events on C. When the buffer is full, chat traffic such as
// MessageReceived and PresenceChanged is dropped. Events that change session state
// (ConnectionStatusChanged, AuthFailed, SessionAuthenticated, RoomJoined and
// RoomJoinFailed) are always queued: the oldest buffered event is evicted to make room.
type Subscription struct {
	C <-chan Event

	ch chan Event
	s  *Session
}

// Subscribe registers a new event listener with the given buffer size. A slow reader
// loses chat events first; see Subscription.
func (s *Session) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, s: s}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe stops delivery and closes C.
func (sub *Subscription) Unsubscribe() {
	s := sub.s

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		if !mustDeliver(ev) {
			logx.Warn("Subscriber buffer full, dropping event", "event", eventName(ev))
			continue
		}

		// dispatch is the only sender and holds s.mu, so one receive frees a slot.
		select {
		case old := <-sub.ch:
			logx.Warn("Subscriber buffer full, evicting oldest event", "event", eventName(old), "for", eventName(ev))
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// mustDeliver reports whether ev changes what a subscriber believes about the session.
func mustDeliver(ev Event) bool {
	switch ev.(type) {
	case ConnectionStatusChanged, AuthFailed, SessionAuthenticated, RoomJoined, RoomJoinFailed:
		return true
	}
	return false
}

// IsClosed reports whether err means the session has been closed.
func IsClosed(err error) bool {
	return errs.IsCode(err, errs.ErrSessionClosed)
}
