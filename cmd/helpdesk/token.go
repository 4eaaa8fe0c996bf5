package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpnet/helpdesk/internal/auth"
	"github.com/corpnet/helpdesk/internal/config"
)

var tokenTTLMinutes int

// newTokenCommand mints bearer tokens for local testing. Production tokens
// come from the corporate identity provider.
func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&tokenTTLMinutes, "ttl", 60, "Token lifetime in minutes")
	return cmd
}
