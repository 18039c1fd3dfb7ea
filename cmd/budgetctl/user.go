package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"budget/internal/auth"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var username, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long: `Create a user with the given username.

The password is prompted for when --password is omitted. When stdin is not
a terminal the first line of input is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				var err error
				password, err = readPassword(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}

			store, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer store.Cleanup()

			svc, err := auth.NewService(store.Backend, auth.NewTokenIssuer(a.cfg.SecretKey, a.cfg.TokenTTL), a.cfg.BcryptCost, a.logger)
			if err != nil {
				return err
			}
			user, err := svc.Register(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s created with ID %s\n", user.Username, user.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&username, "username", "u", "", "username")
	add.Flags().StringVarP(&password, "password", "p", "", "password (prompted for when omitted)")
	_ = add.MarkFlagRequired("username")

	cmd.AddCommand(add)
	return cmd
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
