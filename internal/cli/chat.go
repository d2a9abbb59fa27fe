package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"swiftchat/internal/app/api"
	"swiftchat/internal/app/kv"
	"swiftchat/internal/app/session"
	"swiftchat/internal/app/token"
	"swiftchat/internal/configs"
	"swiftchat/internal/pkg/errs"
)

const chatHelp = `commands:
  /join <room>   join a room (leaves the current one)
  /leave         leave the current room
  /rooms         list rooms
  /create <name> create a room
  /history       show recent messages of the current room
  /status        show the session state
  /logout        sign out and forget the stored token
  /quit          exit, keeping the stored token
anything else is sent to the current room`

type chatOptions struct {
	room     string
	username string
	password string
	register bool
}

func newChatCmd(a *app) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat session",
		Long:  "chat connects with the stored token (or signs in with --username/--password), optionally joins --room, and relays lines from stdin as messages.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), a.cfg, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.room, "room", "", "room to join once signed in")
	flags.StringVarP(&opts.username, "username", "u", "", "sign in as this user before connecting")
	flags.StringVarP(&opts.password, "password", "p", "", "password for --username")
	flags.BoolVar(&opts.register, "register", false, "create the account first")

	return cmd
}

// chat is one interactive session.
type chat struct {
	cfg    *configs.AppConfig
	store  *token.Store
	sess   *session.Session
	render *renderer
	opts   chatOptions

	mu sync.Mutex // serializes output
}

func runChat(ctx context.Context, cfg *configs.AppConfig, in io.Reader, out io.Writer, opts chatOptions) error {
	store := token.NewStore(kv.NewFileStore(cfg.TokenFile))
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	if opts.username != "" {
		if err := signIn(ctx, cfg, store, opts); err != nil {
			return err
		}
	}

	c := &chat{
		cfg:    cfg,
		store:  store,
		sess:   session.New(sessionOptions(cfg, store)),
		render: newRenderer(out),
		opts:   opts,
	}
	defer c.sess.Close()

	sub := c.sess.Subscribe(256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pumpEvents(ctx, sub)
	}()
	defer wg.Wait()
	defer sub.Unsubscribe()

	if err := c.sess.Connect(ctx); err != nil {
		if errs.IsCode(err, errs.ErrNoToken) {
			return fmt.Errorf("no stored token: sign in with --username and --password")
		}
		return err
	}

	c.print(c.render.styles.faint.Render("type /help for commands"))

	return c.readInput(ctx, in)
}

func signIn(ctx context.Context, cfg *configs.AppConfig, store *token.Store, opts chatOptions) error {
	client := api.New(cfg.APIURL, nil)

	var (
		account *api.Account
		err     error
	)
	if opts.register {
		account, err = client.Register(ctx, opts.username, opts.password)
	} else {
		account, err = client.Login(ctx, opts.username, opts.password)
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	return store.Set(ctx, token.Token(account.Token))
}

func (c *chat) print(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render.println(line)
}

func (c *chat) pumpEvents(ctx context.Context, sub *session.Subscription) {
	var joinOnce sync.Once

	for ev := range sub.C {
		c.mu.Lock()
		c.render.event(ev)
		c.mu.Unlock()

		if _, ok := ev.(session.SessionAuthenticated); ok && c.opts.room != "" {
			joinOnce.Do(func() {
				if err := c.sess.JoinRoom(ctx, c.opts.room); err != nil && !session.IsClosed(err) {
					c.warn(err)
				}
			})
		}
	}
}

func (c *chat) warn(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render.warnf("%s", describe(err))
}

func (c *chat) readInput(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := c.handleLine(ctx, line); done {
				return nil
			}
		}
	}
}

// parseInput splits a slash command from its argument. Plain text has an empty command.
func parseInput(line string) (command, arg string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}

	command, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(command), strings.TrimSpace(arg)
}

// handleLine runs one line of input and reports whether the chat should exit.
func (c *chat) handleLine(ctx context.Context, line string) bool {
	command, arg := parseInput(line)

	var err error
	switch command {
	case "":
		if arg == "" {
			return false
		}
		_, err = c.sess.SendMessage(ctx, arg)

	case "quit", "exit":
		return true

	case "logout":
		if err := c.sess.Logout(ctx); err != nil {
			c.warn(err)
		}
		c.print(c.render.styles.system.Render("* signed out"))
		return true

	case "join":
		if arg == "" {
			c.print("usage: /join <room>")
			return false
		}
		err = c.sess.JoinRoom(ctx, arg)

	case "leave":
		err = c.sess.LeaveRoom(ctx)

	case "rooms":
		err = c.listRooms(ctx)

	case "create":
		err = c.createRoom(ctx, arg)

	case "history":
		err = c.history(ctx)

	case "status":
		err = c.status(ctx)

	case "help":
		c.print(chatHelp)

	default:
		c.print(fmt.Sprintf("unknown command /%s, try /help", command))
	}

	if err != nil {
		if session.IsClosed(err) {
			return true
		}
		c.warn(err)
	}
	return false
}

func (c *chat) restClient() (*api.Client, error) {
	tok, ok := c.store.Get()
	if !ok {
		return nil, errs.NewError(errs.ErrNoToken)
	}
	return api.New(c.cfg.APIURL, nil).WithToken(string(tok)), nil
}

func (c *chat) listRooms(ctx context.Context) error {
	client, err := c.restClient()
	if err != nil {
		return err
	}

	rooms, err := client.ListRooms(ctx)
	if err != nil {
		return err
	}

	if len(rooms) == 0 {
		c.print("no rooms yet, /create <name> to make one")
		return nil
	}
	for _, room := range rooms {
		c.print(fmt.Sprintf("  %s  %-24s %d online", room.ID, room.Name, room.MemberCount))
	}
	return nil
}

func (c *chat) createRoom(ctx context.Context, name string) error {
	client, err := c.restClient()
	if err != nil {
		return err
	}

	room, err := client.CreateRoom(ctx, name, "")
	if err != nil {
		return err
	}

	c.print(fmt.Sprintf("* created %s (%s)", room.Name, room.ID))
	return c.sess.JoinRoom(ctx, string(room.ID))
}

func (c *chat) history(ctx context.Context) error {
	snap, err := c.sess.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.RoomID == "" {
		return errs.NewError(errs.ErrNotInRoom)
	}

	client, err := c.restClient()
	if err != nil {
		return err
	}

	messages, err := client.Messages(ctx, snap.RoomID)
	if err != nil {
		return err
	}

	for _, m := range messages {
		c.print(fmt.Sprintf("%s %s %s",
			c.render.styles.timestamp.Render(m.Timestamp.Local().Format("15:04:05")),
			c.render.styles.author.Render(m.Username+":"),
			m.Content))
	}
	return nil
}

func (c *chat) status(ctx context.Context) error {
	snap, err := c.sess.Snapshot(ctx)
	if err != nil {
		return err
	}

	room := snap.RoomID
	if room == "" {
		room = "-"
	}
	c.print(fmt.Sprintf("state=%s user=%s room=%s pending=%d reconnects=%d",
		snap.State, snap.Username, room, snap.Pending, snap.ReconnectAttempts))
	return nil
}
