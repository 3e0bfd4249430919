package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ledgerly/ledgerly/backend/go-services/pkg/client"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

type app struct {
	server      string
	sessionFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Sign in to a Ledgerly server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.server, "server", envOr("LEDGERLY_SERVER", defaultServer), "server base URL")
	root.PersistentFlags().StringVar(&a.sessionFile, "session-file", os.Getenv("LEDGERLY_SESSION_FILE"), "where the session is kept (default: user config dir)")

	root.AddCommand(
		loginCmd(a),
		registerCmd(a),
		whoamiCmd(a),
		logoutCmd(a),
	)
	return root
}

func (a *app) api() *client.API {
	return client.NewAPI(a.server, nil)
}

func (a *app) session(out io.Writer) (*client.Session, error) {
	path := a.sessionFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "ledgerly", "session.json")
	}
	nav := client.NavigatorFunc(func(p string) {
		fmt.Fprintf(out, "Signed out. Sign in again with `ledgerctl login` or at %s%s\n", a.server, p)
	})
	return client.NewSession(a.api(), client.NewFileStorage(path), nav), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
