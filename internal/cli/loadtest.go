package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"swiftchat/internal/app/api"
	"swiftchat/internal/app/session"
	"swiftchat/internal/app/token"
	"swiftchat/internal/configs"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/randx"
)

// stepTimeout bounds how long a virtual user waits for auth or join confirmation.
const stepTimeout = 10 * time.Second

type loadOptions struct {
	users    int
	duration time.Duration
	rate     float64
	room     string
	password string
	drain    time.Duration
}

func newLoadTestCmd(a *app) *cobra.Command {
	opts := loadOptions{drain: 2 * time.Second}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive virtual users through auth, join and paced chat",
		Long:  "loadtest registers one account per virtual user, opens a session for each, joins a shared room and sends paced messages, then reports auth, join and message round-trip latencies.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := runLoadTest(cmd.Context(), a.cfg, opts)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.users, "users", 10, "number of virtual users")
	flags.DurationVar(&opts.duration, "duration", 30*time.Second, "how long each user keeps sending")
	flags.Float64Var(&opts.rate, "rate", 1, "messages per second per user")
	flags.StringVar(&opts.room, "room", "", "room to use (default: create one)")
	flags.StringVar(&opts.password, "password", "password123", "password for generated accounts")

	return cmd
}

// latencies is a concurrency-safe sample set.
type latencies struct {
	mu      sync.Mutex
	samples []time.Duration
}

func (l *latencies) add(d time.Duration) {
	l.mu.Lock()
	l.samples = append(l.samples, d)
	l.mu.Unlock()
}

func (l *latencies) snapshot() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Duration(nil), l.samples...)
}

// percentile returns the nearest-rank p-th percentile of samples, or 0 when empty.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(p/100*float64(len(sorted))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

type loadReport struct {
	RoomID   string
	Users    int
	Failed   int
	Sent     int64
	Acked    int64
	Dropped  int64
	Received int64
	Auth     []time.Duration
	Join     []time.Duration
	RTT      []time.Duration
}

func (r *loadReport) print(out io.Writer) {
	st := newStyles()
	line := func(name string, samples []time.Duration) {
		fmt.Fprintf(out, "  %-10s n=%-6d p50=%-10s p95=%s\n", name, len(samples),
			percentile(samples, 50).Round(time.Microsecond),
			percentile(samples, 95).Round(time.Microsecond))
	}

	fmt.Fprintln(out, st.author.Render(fmt.Sprintf("load test on room %s", r.RoomID)))
	fmt.Fprintf(out, "  users      %d ok, %d failed\n", r.Users-r.Failed, r.Failed)
	fmt.Fprintf(out, "  messages   sent=%d acked=%d dropped=%d received=%d\n", r.Sent, r.Acked, r.Dropped, r.Received)
	line("auth", r.Auth)
	line("join", r.Join)
	line("rtt", r.RTT)
}

type loadRun struct {
	cfg  *configs.AppConfig
	opts loadOptions

	auth, join, rtt latencies

	mu                             sync.Mutex
	sent, acked, dropped, received int64
	failed                         int
}

func (lr *loadRun) count(field *int64) {
	lr.mu.Lock()
	*field++
	lr.mu.Unlock()
}

func runLoadTest(ctx context.Context, cfg *configs.AppConfig, opts loadOptions) (*loadReport, error) {
	if opts.users < 1 {
		return nil, fmt.Errorf("--users must be at least 1")
	}
	if opts.rate <= 0 {
		return nil, fmt.Errorf("--rate must be positive")
	}

	client := api.New(cfg.APIURL, nil)

	roomID := opts.room
	if roomID == "" {
		base, err := client.Register(ctx, "load_base_"+randx.MessageID()[:8], opts.password)
		if err != nil {
			return nil, fmt.Errorf("register base user: %w", err)
		}
		room, err := client.WithToken(base.Token).CreateRoom(ctx, "loadtest-"+randx.MessageID()[:6], "load test room")
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		roomID = string(room.ID)
	}
	opts.room = roomID

	logx.Info("Load test starting", "room_id", roomID, "users", opts.users, "duration", opts.duration.String())

	lr := &loadRun{cfg: cfg, opts: opts}

	var wg sync.WaitGroup
	for i := range opts.users {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := lr.virtualUser(ctx, client, n); err != nil {
				logx.Warn("Virtual user failed", "user", n, "error", err.Error())
				lr.mu.Lock()
				lr.failed++
				lr.mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	lr.mu.Lock()
	defer lr.mu.Unlock()

	return &loadReport{
		RoomID:   roomID,
		Users:    opts.users,
		Failed:   lr.failed,
		Sent:     lr.sent,
		Acked:    lr.acked,
		Dropped:  lr.dropped,
		Received: lr.received,
		Auth:     lr.auth.snapshot(),
		Join:     lr.join.snapshot(),
		RTT:      lr.rtt.snapshot(),
	}, nil
}

// waitFor consumes events from sub until match accepts one or timeout passes.
func waitFor(ctx context.Context, sub *session.Subscription, timeout time.Duration, match func(session.Event) (bool, error)) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return errors.New("session closed")
			}
			if done, err := match(ev); done || err != nil {
				return err
			}
		case <-timer.C:
			return errors.New("timed out")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (lr *loadRun) virtualUser(ctx context.Context, client *api.Client, n int) error {
	username := fmt.Sprintf("load_%d_%s", n, randx.MessageID()[:8])
	account, err := client.Register(ctx, username, lr.opts.password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	store := token.NewStore(nil)
	if err := store.Set(ctx, token.Token(account.Token)); err != nil {
		return err
	}

	sess := session.New(sessionOptions(lr.cfg, store))
	defer sess.Close()
	sub := sess.Subscribe(1024)

	start := time.Now()
	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	err = waitFor(ctx, sub, stepTimeout, func(ev session.Event) (bool, error) {
		switch e := ev.(type) {
		case session.SessionAuthenticated:
			return true, nil
		case session.AuthFailed:
			return false, fmt.Errorf("auth: %s", e.Reason)
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	lr.auth.add(time.Since(start))

	start = time.Now()
	if err := sess.JoinRoom(ctx, lr.opts.room); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	err = waitFor(ctx, sub, stepTimeout, func(ev session.Event) (bool, error) {
		switch e := ev.(type) {
		case session.RoomJoined:
			return true, nil
		case session.RoomJoinFailed:
			return false, fmt.Errorf("join: %s", e.Reason)
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	lr.join.add(time.Since(start))

	events := make(chan struct{})
	go func() {
		defer close(events)
		for ev := range sub.C {
			switch e := ev.(type) {
			case session.MessageAcked:
				lr.count(&lr.acked)
				lr.rtt.add(e.Latency)
			case session.MessageDropped:
				lr.count(&lr.dropped)
			case session.MessageReceived:
				lr.count(&lr.received)
			}
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, lr.opts.duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(lr.opts.rate), 1)
	for seq := 0; ; seq++ {
		if err := limiter.Wait(sendCtx); err != nil {
			break
		}
		if _, err := sess.SendMessage(sendCtx, fmt.Sprintf("load message %d from %s", seq, username)); err != nil {
			if sendCtx.Err() != nil {
				break
			}
			logx.Debug("Load send failed", "user", username, "error", err.Error())
			continue
		}
		lr.count(&lr.sent)
	}

	lr.awaitAcks(ctx, sess)

	_ = sess.Close()
	<-events
	return nil
}

// awaitAcks gives outstanding sends up to the drain period to be acknowledged.
func (lr *loadRun) awaitAcks(ctx context.Context, sess *session.Session) {
	deadline := time.Now().Add(lr.opts.drain)
	for time.Now().Before(deadline) {
		snap, err := sess.Snapshot(ctx)
		if err != nil || snap.Pending == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}
