/*
Package transport wraps one persistent bidirectional channel to the chat server.

It is purely mechanical: it opens the channel, queues outbound frames, delivers
inbound frames and reports closure. Retrying is the caller's business.
*/
package transport

import (
	"context"
)

// Handler receives the passive callbacks of an open channel. Callbacks run on the
// channel's read goroutine; OnClose is called exactly once per opened channel.
type Handler struct {
	OnFrame func(raw []byte)
	OnClose func(code int, reason string)
	OnError func(err error)
}

func (h Handler) frame(raw []byte) {
	if h.OnFrame != nil {
		h.OnFrame(raw)
	}
}

func (h Handler) closed(code int, reason string) {
	if h.OnClose != nil {
		h.OnClose(code, reason)
	}
}

func (h Handler) failed(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Channel is an open handle. Send never blocks on network I/O; once the channel is
// closed it fails with errs.ErrNotConnected.
type Channel interface {
	Send(frame []byte) error
	Close() error
}

// Opener establishes channels. A successful return is the "open" event.
type Opener interface {
	Open(ctx context.Context, url string, h Handler) (Channel, error)
}
