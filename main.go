package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/bootstrap"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/logger"
	"github.com/go-authgate/connectgate/internal/version"

	"github.com/spf13/cobra"
)

var errMisconfiguredProviders = errors.New("one or more enabled providers are misconfigured")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "connectgate",
		Short:        "OAuth connection service for Gmail, Discord and Slack",
		Version:      version.String(),
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCommand(),
		newProvidersCommand(),
		newVersionCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.LogLevel, cfg.LogFormat)

			slog.Info("starting", "app", version.App, "version", version.String())
			if err := bootstrap.Run(context.Background(), cfg); err != nil {
				slog.Error("server failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show which OAuth providers are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			return printProviders(cmd.OutOrStdout(), cfg)
		},
	}
}

// printProviders writes the registry status and fails when an enabled
// provider cannot be used.
func printProviders(w io.Writer, cfg *config.Config) error {
	configs, disabled := bootstrap.ProviderConfigs(cfg)
	registry := auth.NewRegistry(nil, cfg.OAuthTimeout, configs...)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tDETAIL")
	misconfigured := false
	for _, info := range registry.List() {
		if info.Configured {
			fmt.Fprintf(tw, "%s\tconfigured\t%s\n", info.ID, info.Name)
			continue
		}
		misconfigured = true
		fmt.Fprintf(tw, "%s\tmisconfigured\t%s\n", info.ID, info.Problem)
	}
	for _, id := range disabled {
		fmt.Fprintf(tw, "%s\tdisabled\t\n", id)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if misconfigured {
		return errMisconfiguredProviders
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			version.PrintVersion(cmd.OutOrStdout())
		},
	}
}
