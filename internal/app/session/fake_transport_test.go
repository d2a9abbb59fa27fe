package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swiftchat/internal/app/protocol"
	"swiftchat/internal/app/transport"
	"swiftchat/internal/pkg/errs"
)

// fakeOpener hands out scripted channels instead of dialing.
type fakeOpener struct {
	opened chan *fakeChannel
	dials  atomic.Int32

	mu       sync.Mutex
	failWith error
	onOpen   func(*fakeChannel)
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opened: make(chan *fakeChannel, 64)}
}

func (o *fakeOpener) Open(_ context.Context, _ string, h transport.Handler) (transport.Channel, error) {
	o.dials.Add(1)

	o.mu.Lock()
	fail, hook := o.failWith, o.onOpen
	o.mu.Unlock()

	if fail != nil {
		return nil, fail
	}

	c := &fakeChannel{h: h, sent: make(chan []byte, 64)}
	select {
	case o.opened <- c:
	default:
	}
	if hook != nil {
		hook(c)
	}
	return c, nil
}

func (o *fakeOpener) next(t *testing.T) *fakeChannel {
	t.Helper()
	select {
	case c := <-o.opened:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a channel to open")
		return nil
	}
}

type fakeChannel struct {
	h    transport.Handler
	sent chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (c *fakeChannel) Send(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errs.NewError(errs.ErrNotConnected)
	}
	select {
	case c.sent <- raw:
	default:
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	go c.fireClose(1000, "closed by client")
	return nil
}

func (c *fakeChannel) fireClose(code int, reason string) {
	c.closeOnce.Do(func() { c.h.OnClose(code, reason) })
}

// drop simulates the server side going away.
func (c *fakeChannel) drop(code int) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.fireClose(code, "")
}

func (c *fakeChannel) deliver(raw string) {
	c.h.OnFrame([]byte(raw))
}

func (c *fakeChannel) expectFrame(t *testing.T, want protocol.FrameType) protocol.Frame {
	t.Helper()
	for {
		select {
		case raw := <-c.sent:
			f, err := protocol.DecodeClientFrame(raw)
			require.NoError(t, err)
			if f.Type == protocol.TypePing && want != protocol.TypePing {
				continue
			}
			require.Equal(t, want, f.Type, string(raw))
			return f
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s frame", want)
			return protocol.Frame{}
		}
	}
}

func (c *fakeChannel) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case raw := <-c.sent:
		t.Fatalf("unexpected frame %s", raw)
	case <-time.After(d):
	}
}
