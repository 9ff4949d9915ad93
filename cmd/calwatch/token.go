package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"staybook/config"
	"staybook/middleware"
)

func tokenCmd() *cobra.Command {
	var (
		user  string
		roles []string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a staff token with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := middleware.NewAuth(cfg.JWTSecret).Issue(user, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "staff", "Subject of the token")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"staff"}, "Roles to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
