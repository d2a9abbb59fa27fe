package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"swiftchat/internal/app/api"
	"swiftchat/internal/app/token"
	"swiftchat/internal/pkg/randx"
)

type debugAuthOptions struct {
	username string
	password string
	roomName string
}

func newDebugAuthCmd(a *app) *cobra.Command {
	var opts debugAuthOptions

	cmd := &cobra.Command{
		Use:   "debug-auth",
		Short: "Walk through register, login, introspect and room creation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDebugAuth(cmd.Context(), api.New(a.cfg.APIURL, nil), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.username, "username", "", "account to create (default: random)")
	flags.StringVar(&opts.password, "password", "password123", "account password")
	flags.StringVar(&opts.roomName, "room-name", "debug-room", "name of the room to create")

	return cmd
}

func runDebugAuth(ctx context.Context, client *api.Client, out io.Writer, opts debugAuthOptions) error {
	st := newStyles()
	step := func(n int, title string, data any) {
		raw, _ := json.MarshalIndent(data, "    ", "  ")
		fmt.Fprintf(out, "%s %s\n    %s\n", st.ok.Render(fmt.Sprintf("[%d] ok", n)), title, raw)
	}
	fail := func(n int, title string, err error) error {
		fmt.Fprintf(out, "%s %s: %v\n", st.warning.Render(fmt.Sprintf("[%d] failed", n)), title, err)
		return fmt.Errorf("%s: %w", title, err)
	}

	username := opts.username
	if username == "" {
		username = "debug_" + randx.MessageID()[:8]
	}

	registered, err := client.Register(ctx, username, opts.password)
	if err != nil {
		return fail(1, "register", err)
	}
	step(1, "register "+username, registered)

	account, err := client.Login(ctx, username, opts.password)
	if err != nil {
		return fail(2, "login", err)
	}
	step(2, "login", account)

	claims, err := token.Decode(token.Token(account.Token))
	if err != nil {
		return fail(3, "decode token claims", err)
	}
	step(3, "decode token claims", claims)

	authed := client.WithToken(account.Token)

	identity, err := authed.Introspect(ctx)
	if err != nil {
		return fail(4, "introspect", err)
	}
	step(4, "introspect", identity)

	room, err := authed.CreateRoom(ctx, opts.roomName, "created by debug-auth")
	if err != nil {
		return fail(5, "create room", err)
	}
	step(5, "create room", room)

	fmt.Fprintln(out, st.ok.Render("auth flow complete"))
	return nil
}
