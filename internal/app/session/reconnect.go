package session

import (
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultReconnectDelay is the fixed delay of the default policy.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultMaxReconnectDelay caps Backoff when MaxDelay is unset.
	DefaultMaxReconnectDelay = 30 * time.Second

	// backoffJitterPercent spreads a jittered delay over +/-50% of its value.
	backoffJitterPercent = 50
)

// DisconnectReason describes a channel closure handed to a ReconnectPolicy.
type DisconnectReason struct {
	Code   int
	Reason string

	// Attempt counts consecutive closures since the session last authenticated, starting at 1.
	Attempt int

	// WasAuthenticated is true when the channel had passed the auth handshake.
	WasAuthenticated bool
}

// Action is a ReconnectPolicy decision: retry after Delay, or give up.
type Action struct {
	Retry bool
	Delay time.Duration
}

func RetryAfter(d time.Duration) Action {
	if d < 0 {
		d = 0
	}
	return Action{Retry: true, Delay: d}
}

func GiveUp() Action {
	return Action{}
}

// ReconnectPolicy decides what happens after the channel closes. It is never
// consulted after logout.
type ReconnectPolicy interface {
	OnDisconnect(reason DisconnectReason) Action
}

// FixedDelay retries forever after the same delay. A Delay of zero or less means
// DefaultReconnectDelay; configuration rejects such values before they get here.
type FixedDelay struct {
	Delay time.Duration
}

func (p FixedDelay) OnDisconnect(DisconnectReason) Action {
	if p.Delay <= 0 {
		return RetryAfter(DefaultReconnectDelay)
	}
	return RetryAfter(p.Delay)
}

// Backoff doubles the delay from InitialDelay up to MaxDelay, optionally with
// +/-50% jitter. With MaxAttempts > 0 it gives up once that many consecutive
// attempts have failed. The sequence restarts whenever the session reports a first
// attempt again, which happens after every successful authentication.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int

	mu      sync.Mutex
	seq     retry.Backoff
	attempt int
}

func (p *Backoff) OnDisconnect(reason DisconnectReason) Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	attempt := reason.Attempt
	if attempt < 1 {
		attempt = 1
	}

	if p.seq == nil || attempt <= p.attempt {
		p.seq = p.newSequence()
		p.attempt = 0
	}

	var (
		delay time.Duration
		stop  bool
	)
	for p.attempt < attempt {
		delay, stop = p.seq.Next()
		p.attempt++
		if stop {
			return GiveUp()
		}
	}

	return RetryAfter(delay)
}

func (p *Backoff) newSequence() retry.Backoff {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = DefaultReconnectDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxReconnectDelay
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	seq := retry.WithCappedDuration(maxDelay, retry.NewExponential(initial))
	seq = saturate(maxDelay, seq)
	if p.Jitter {
		seq = retry.WithJitterPercent(backoffJitterPercent, seq)
	}
	if p.MaxAttempts > 0 {
		seq = retry.WithMaxRetries(uint64(p.MaxAttempts), seq)
	}
	return seq
}

// saturate stops advancing next once it has reached limit. The exponential sequence
// shifts its base on every call and would eventually overflow.
func saturate(limit time.Duration, next retry.Backoff) retry.Backoff {
	var reached bool
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if reached {
			return limit, false
		}
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if d >= limit {
			reached = true
			return limit, false
		}
		return d, false
	})
}
