package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"swiftchat/internal/app/session"
	"swiftchat/internal/pkg/errs"
)

type styles struct {
	timestamp lipgloss.Style
	author    lipgloss.Style
	self      lipgloss.Style
	system    lipgloss.Style
	warning   lipgloss.Style
	faint     lipgloss.Style
	ok        lipgloss.Style
}

func newStyles() styles {
	return styles{
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		author:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		self:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("120")),
		system:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		faint:     lipgloss.NewStyle().Faint(true),
		ok:        lipgloss.NewStyle().Foreground(lipgloss.Color("120")),
	}
}

// renderer turns session events into terminal lines.
type renderer struct {
	out    io.Writer
	styles styles
	selfID string
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, styles: newStyles()}
}

func (r *renderer) println(line string) {
	fmt.Fprintln(r.out, line)
}

func (r *renderer) systemf(format string, args ...any) {
	r.println(r.styles.system.Render("* " + fmt.Sprintf(format, args...)))
}

func (r *renderer) warnf(format string, args ...any) {
	r.println(r.styles.warning.Render("! " + fmt.Sprintf(format, args...)))
}

// describe returns the user-facing message of err.
func describe(err error) string {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return customErr.Message
	}
	return err.Error()
}

// formatEvent renders ev, reporting false for events that print nothing.
func (r *renderer) formatEvent(ev session.Event) (string, bool) {
	s := r.styles

	switch e := ev.(type) {
	case session.MessageReceived:
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		name := e.Username
		if name == "" {
			name = e.UserID
		}
		author := s.author
		if e.UserID != "" && e.UserID == r.selfID {
			author = s.self
		}
		return fmt.Sprintf("%s %s %s", s.timestamp.Render(ts.Format("15:04:05")), author.Render(name+":"), e.Content), true

	case session.MessageAcked:
		return s.faint.Render(fmt.Sprintf("  sent (%s)", e.Latency.Round(time.Millisecond))), true

	case session.MessageDropped:
		return s.warning.Render("! message not delivered: " + e.Reason), true

	case session.SessionAuthenticated:
		r.selfID = e.UserID
		return s.system.Render(fmt.Sprintf("* signed in as %s", e.Username)), true

	case session.AuthFailed:
		return s.warning.Render(fmt.Sprintf("! authentication failed: %s (sign in again with --username)", e.Reason)), true

	case session.RoomJoined:
		return s.ok.Render("* joined room " + e.RoomID), true

	case session.RoomJoinFailed:
		return s.warning.Render(fmt.Sprintf("! could not join %s: %s", e.RoomID, e.Reason)), true

	case session.PresenceChanged:
		verb := "left"
		if e.Joined {
			verb = "joined"
		}
		name := e.Username
		if name == "" {
			name = e.UserID
		}
		return s.system.Render(fmt.Sprintf("* %s %s", name, verb)), true

	case session.ConnectionStatusChanged:
		return s.faint.Render("  status: " + e.State.String()), true

	case session.ReconnectScheduled:
		return s.warning.Render(fmt.Sprintf("! connection lost, retrying in %s (attempt %d)", e.Delay, e.Attempt)), true

	case session.RoomListInvalidated:
		return s.faint.Render("  room list changed, /rooms to refresh"), true

	case session.ServerError:
		return s.warning.Render("! server: " + e.Message), true
	}

	return "", false
}

func (r *renderer) event(ev session.Event) {
	if line, ok := r.formatEvent(ev); ok {
		r.println(line)
	}
}
