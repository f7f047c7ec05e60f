package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeai/scribe/internal/auth"
	"github.com/scribeai/scribe/internal/config"
	"github.com/scribeai/scribe/internal/db"
	"github.com/scribeai/scribe/internal/logger"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "scribe",
		Short:        "Conversational assistant with document attachments",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (defaults to $CONFIG_PATH or ./config.toml)")
	root.AddCommand(newServeCommand(), newMigrateCommand(), newTokenCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				logger.Init(cfg.Log.Level, cfg.Log.Format)
				return db.Migrate(logger.L, cfg.Postgres)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				logger.Init(cfg.Log.Level, cfg.Log.Format)
				return db.MigrateDown(logger.L, cfg.Postgres)
			},
		},
	)
	return migrateCmd
}

func newTokenCommand() *cobra.Command {
	var (
		userID    string
		expiresIn time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			if expiresIn <= 0 {
				expiresIn = cfg.Auth.JWTExpiresInDuration()
			}
			token, expiresAt, err := auth.GenerateToken(userID, cfg.Auth.JWTSecret, expiresIn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token claims")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime (defaults to auth.jwt_expires_in)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
