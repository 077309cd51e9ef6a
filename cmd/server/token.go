package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/henjicc/henji-server/internal/adapter/outbound/apitoken"
	"github.com/henjicc/henji-server/internal/app"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringP("subject", "s", "desktop", "Token subject")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default: auth.token_expiry)")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token signed with auth.jwt_secret",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := app.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	tokens := apitoken.NewJWTManager(apitoken.Config{
		Secret: cfg.Auth.JWTSecret,
		Expiry: cfg.Auth.TokenExpiry,
	})
	token, expiresAt, err := tokens.IssueToken(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
