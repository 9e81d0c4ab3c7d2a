// Command propostas runs the quoting API and its operational tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/constructa/propostas/internal/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "propostas",
		Short:         "Quoting and commercial proposals service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedFreightCmd(),
		createUserCmd(),
		jobsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "propostas version %s (build: %s)\n", app.Version, app.BuildTime)
			},
		},
	)
	return cmd
}

// env bundles what every command that touches the database needs.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
}

func loadEnv() (env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return env{}, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)
	return env{cfg: cfg, logger: logger}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
