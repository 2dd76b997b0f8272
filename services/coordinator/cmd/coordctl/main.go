package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"eventbook/pkg/bus"
	"eventbook/pkg/db"
	"eventbook/pkg/notify"
	"eventbook/services/coordinator"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coordctl",
		Short:         "Utility for operating the eventbook coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newStreamCommand())
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)

			dsn := os.Getenv("DB_DSN")
			if dsn == "" {
				return errors.New("DB_DSN is required")
			}

			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv("JWT_SIGNING_KEY")
			if key == "" {
				return errors.New("JWT_SIGNING_KEY is required")
			}

			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			token, err := coordinator.NewResolver([]byte(key)).Issue(uid, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (uuid) the token identifies")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStreamCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-stream",
		Short: "Create the notification dispatch stream if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := os.Getenv("NATS_URL")
			if url == "" {
				return errors.New("NATS_URL is required")
			}

			b, err := bus.New(url)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.EnsureStream(notify.StreamName, notify.SubjectDispatch); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stream ready")
			return nil
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
