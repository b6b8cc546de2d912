package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flowex/flowex-go/internal/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and persist the session",
		Long: `Prompts for credentials, authenticates against the FlowEx API, and
stores the session so subsequent commands resume it without logging in
again. Pass --no-remember to keep tokens in memory only.`,
		RunE: runLogin,
	}
	cmd.Flags().String("email", "", "Account email (prompted when omitted)")
	cmd.Flags().Bool("no-remember", false, "Do not persist tokens to durable storage")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	noRemember, _ := cmd.Flags().GetBool("no-remember")
	err = a.manager.Login(ctx, session.Credentials{
		Email:      email,
		Password:   string(password),
		RememberMe: !noRemember,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	sess := a.manager.Session()
	if sess.User != nil {
		log.Info().Str("email", sess.User.Email).Msg("Logged in")
	}
	return nil
}
