// Command client is a terminal front end for the chat-auth session core.  It
// exercises the same credential store, API client and session guard a chat
// app embeds.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/chat-auth/internal/client/api"
	"github.com/iliyamo/chat-auth/internal/client/credstore"
	"github.com/iliyamo/chat-auth/internal/client/session"
	"github.com/iliyamo/chat-auth/internal/logging"
)

var (
	serverURL string
	storeKind string
	credsPath string
	verify    bool
	verbose   bool
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type app struct {
	api *api.Client
	ctl *session.Controller
	out io.Writer
}

func newApp(out io.Writer) (*app, error) {
	var store credstore.Store
	switch storeKind {
	case "memory":
		store = credstore.NewMemoryStore()
	case "file":
		path := credsPath
		if path == "" {
			p, err := credstore.DefaultPath()
			if err != nil {
				return nil, fmt.Errorf("locate credentials file: %w", err)
			}
			path = p
		}
		store = credstore.NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown --store %q (want file or memory)", storeKind)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logging.NewWithWriter("dev", level, os.Stderr)
	if err != nil {
		return nil, err
	}

	policy := session.PresenceOnly
	if verify {
		policy = session.VerifyOnLaunch
	}
	client := api.New(serverURL)
	nav := session.NavigatorFunc(func(route string) { fmt.Fprintf(out, "-> %s\n", route) })
	return &app{
		api: client,
		ctl: session.NewController(store, client, nav, session.WithLaunchPolicy(policy), session.WithLogger(log)),
		out: out,
	}, nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	s, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// describe turns client errors into the line shown to the user.
func describe(err error) error {
	var ae *api.Error
	switch {
	case errors.As(err, &ae):
		return errors.New(ae.Message)
	case errors.Is(err, api.ErrNetwork):
		return errors.New("cannot reach the server, check your connection")
	case errors.Is(err, session.ErrNoSession):
		return errors.New("not logged in")
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chat-auth",
		Short:         "Log in to a chat-auth server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("CHAT_AUTH_URL", "http://localhost:3001"), "server base URL")
	root.PersistentFlags().StringVar(&storeKind, "store", "file", "credential store: file or memory")
	root.PersistentFlags().StringVar(&credsPath, "creds", "", "credentials file (default: user config dir)")
	root.PersistentFlags().BoolVar(&verify, "verify", false, "verify the stored session with the server at launch")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "launch",
			Short: "Decide which screen the app would open on",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				st := a.ctl.Launch(cmd.Context())
				fmt.Fprintf(a.out, "state: %s\n", st)
				return nil
			},
		},
		&cobra.Command{
			Use:   "register",
			Short: "Create an account",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				in := bufio.NewReader(cmd.InOrStdin())
				email, err := prompt(in, a.out, "Email")
				if err != nil {
					return err
				}
				name, err := prompt(in, a.out, "Display name")
				if err != nil {
					return err
				}
				pw, err := promptPassword(a.out)
				if err != nil {
					return err
				}
				u, err := a.ctl.Register(cmd.Context(), email, pw, name)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(a.out, "Registered %s. Please login.\n", u.Email)
				return nil
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Log in and store the session",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				in := bufio.NewReader(cmd.InOrStdin())
				email, err := prompt(in, a.out, "Email")
				if err != nil {
					return err
				}
				pw, err := promptPassword(a.out)
				if err != nil {
					return err
				}
				if err := a.ctl.Login(cmd.Context(), email, pw); err != nil {
					return describe(err)
				}
				fmt.Fprintln(a.out, "Logged in.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Exchange the stored refresh token for a new access token",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if _, err := a.ctl.Refresh(cmd.Context()); err != nil {
					return describe(err)
				}
				fmt.Fprintln(a.out, "Access token refreshed.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the stored session",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return a.ctl.Logout(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Show the logged-in user",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return whoami(cmd.Context(), a)
			},
		},
	)
	return root
}

// whoami retries once with a refreshed access token when the stored one has
// expired.
func whoami(ctx context.Context, a *app) error {
	tok, err := a.ctl.AccessToken(ctx)
	if err != nil {
		return describe(err)
	}
	u, err := a.api.Me(ctx, tok)
	if api.IsUnauthorized(err) {
		if tok, err = a.ctl.Refresh(ctx); err != nil {
			return describe(err)
		}
		u, err = a.api.Me(ctx, tok)
	}
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s\n", u.DisplayName, u.Email, u.ID)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
