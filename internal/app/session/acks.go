package session

import (
	"strings"
	"time"

	"swiftchat/internal/pkg/errs"
)

// SendKind classifies an outbound frame that expects an acknowledgement.
type SendKind string

const KindChatMessage SendKind = "chat-message"

// PendingSend is the bookkeeping for one unacknowledged outbound frame.
type PendingSend struct {
	LocalID     string
	Kind        SendKind
	RoomID      string
	SubmittedAt time.Time
}

// MatchSpec selects the pending send an acknowledgement belongs to. With an empty
// CorrelationID the oldest pending send of Kind matches; otherwise only the send
// with that local id does.
type MatchSpec struct {
	Kind          SendKind
	CorrelationID string
}

// AckTracker correlates acknowledgements with pending sends. It is owned by the
// session loop and is not safe for concurrent use.
type AckTracker struct {
	order []string
	items map[string]PendingSend
	now   func() time.Time
}

func NewAckTracker(now func() time.Time) *AckTracker {
	if now == nil {
		now = time.Now
	}
	return &AckTracker{
		items: make(map[string]PendingSend),
		now:   now,
	}
}

// Register records a new pending send. A local id may be pending at most once.
func (t *AckTracker) Register(localID string, kind SendKind, roomID string) (PendingSend, error) {
	key := strings.TrimSpace(localID)
	if key == "" {
		return PendingSend{}, errs.NewError(errs.ErrInvalidParams)
	}
	if _, exists := t.items[key]; exists {
		return PendingSend{}, errs.NewError(errs.ErrInvalidParams)
	}

	item := PendingSend{
		LocalID:     key,
		Kind:        kind,
		RoomID:      roomID,
		SubmittedAt: t.now(),
	}
	t.items[key] = item
	t.order = append(t.order, key)
	return item, nil
}

// Resolve removes and returns the pending send selected by match, or fails with
// errs.ErrPendingNotFound.
func (t *AckTracker) Resolve(match MatchSpec) (PendingSend, error) {
	if id := strings.TrimSpace(match.CorrelationID); id != "" {
		item, ok := t.items[id]
		if !ok || item.Kind != match.Kind {
			return PendingSend{}, errs.NewError(errs.ErrPendingNotFound)
		}
		t.remove(id)
		return item, nil
	}

	for _, id := range t.order {
		if item := t.items[id]; item.Kind == match.Kind {
			t.remove(id)
			return item, nil
		}
	}
	return PendingSend{}, errs.NewError(errs.ErrPendingNotFound)
}

// Expire drops the pending send with localID.
func (t *AckTracker) Expire(localID string) (PendingSend, bool) {
	item, ok := t.items[localID]
	if !ok {
		return PendingSend{}, false
	}
	t.remove(localID)
	return item, true
}

// ExpireBefore drops every pending send submitted before cutoff, oldest first.
func (t *AckTracker) ExpireBefore(cutoff time.Time) []PendingSend {
	var expired []PendingSend
	for _, id := range append([]string(nil), t.order...) {
		if item := t.items[id]; item.SubmittedAt.Before(cutoff) {
			t.remove(id)
			expired = append(expired, item)
		}
	}
	return expired
}

// Clear drops every pending send and returns them oldest first.
func (t *AckTracker) Clear() []PendingSend {
	out := make([]PendingSend, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	t.order = nil
	t.items = make(map[string]PendingSend)
	return out
}

func (t *AckTracker) Len() int {
	return len(t.items)
}

// Latency is the time elapsed since the send was registered, clamped at zero.
func (t *AckTracker) Latency(item PendingSend) time.Duration {
	d := t.now().Sub(item.SubmittedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (t *AckTracker) remove(id string) {
	delete(t.items, id)
	for i, key := range t.order {
		if key == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
