package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/config"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/app"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicdesk",
		Short:        "Clinic administration API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return app.New(ctx, cfg)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.SeedOnStart() {
				if _, err := a.Seed(ctx); err != nil {
					return fmt.Errorf("seeding: %w", err)
				}
			}
			return a.Serve(ctx)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, patients and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			seeded, err := a.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if seeded {
				fmt.Printf("Seeded demo data into %s storage.\n", a.Store.Backend())
			} else {
				fmt.Println("Users already exist, nothing seeded.")
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep-uploads",
		Short: "Clean up photo uploads that were never confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			inFlight, tracked, err := a.SweepUploads(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Printf("Cancelled %d in-flight upload(s), cleaned %d tracked upload(s).\n", inFlight, tracked)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 0, "Age after which a tracked upload is stale (default from UPLOAD_STALE_TRACKED_AGE)")
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id|external-id|email>",
		Short: "Issue an access/refresh token pair for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			pair, err := a.Services.Auth.IssueToken(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pair)
		},
	}
}
