package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomrelay/internal/auth"
	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/log"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for the notification API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(log.New("warn", "console"), *configPath)
			if err != nil {
				return err
			}
			if cfg.Notify.ServiceSecret == "" {
				return errors.New("notify.service_secret is not configured")
			}

			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret: []byte(cfg.Notify.ServiceSecret),
				Issuer: cfg.Notify.Issuer,
				TTL:    ttl,
			}, subject, auth.ScopeNotify)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "backend", "name of the calling service")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (0 = no expiry)")
	return cmd
}
