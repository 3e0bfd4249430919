package main

import (
	"errors"
	"fmt"

	"github.com/ledgerly/ledgerly/backend/go-services/pkg/client"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in")

func loginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			user, pass, err := credentials(cmd.InOrStdin(), out, username)
			if err != nil {
				return err
			}
			s, err := a.session(out)
			if err != nil {
				return err
			}
			res := s.Login(cmd.Context(), client.Credentials{Username: user, Password: pass})
			if !res.Success {
				return errors.New(res.Message)
			}
			fmt.Fprintf(out, "%s as %s\n", res.Message, s.User().Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			user, pass, err := credentials(cmd.InOrStdin(), out, username)
			if err != nil {
				return err
			}
			resp, err := a.api().Register(cmd.Context(), client.Credentials{Username: user, Password: pass})
			if err != nil {
				var se *client.StatusError
				if errors.As(err, &se) && se.Message != "" {
					return errors.New(se.Message)
				}
				return err
			}
			name := user
			if resp.User != nil {
				name = resp.User.Username
			}
			fmt.Fprintf(out, "Account %s created. Run `ledgerctl login` to sign in.\n", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s, err := a.session(out)
			if err != nil {
				return err
			}
			u, err := s.CheckAuth(cmd.Context(), refresh)
			if u == nil {
				if err != nil {
					return err
				}
				return errNotSignedIn
			}
			fmt.Fprintf(out, "%s (%s) role=%s verification=%s\n", u.Username, u.ID, u.Role, u.VerificationStatus)
			if err != nil {
				fmt.Fprintf(out, "warning: server unreachable, showing cached session: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ask the server even if the session was checked recently")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session here and on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s, err := a.session(out)
			if err != nil {
				return err
			}
			if err := s.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(out, "warning: server was not told about the logout: %v\n", err)
			}
			return nil
		},
	}
}
