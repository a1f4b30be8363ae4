package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgivc/transmissionbot/internal/app"
	"github.com/spf13/cobra"
)

// Set with -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "none"
	Timestamp = "unknown"
)

func serveCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the wait list reconciler",
		Args:  cobra.NoArgs,
	}

	command.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := app.New(flagConfigFile)
		defer a.Stop()

		if err := a.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		fmt.Println("Received termination signal. Shutting down...")

		return nil
	}

	return command
}

func reconcileCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and exit",
		Long:  `Checks every torrent on the wait list once and notifies chats about finished ones.`,
		Args:  cobra.NoArgs,
	}

	command.RunE = func(cmd *cobra.Command, _ []string) error {
		a := app.New(flagConfigFile)
		defer a.Stop()

		return a.Reconcile(cmd.Context())
	}

	return command
}

func waitListCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "waitlist",
		Short: "Print the wait list",
		Example: `  transmissionbot waitlist
  transmissionbot waitlist -c /etc/transmissionbot/config.yml`,
		Args: cobra.NoArgs,
	}

	command.RunE = func(cmd *cobra.Command, _ []string) error {
		a := app.New(flagConfigFile)
		defer a.Stop()

		return a.PrintWaitList(cmd.Context(), cmd.OutOrStdout())
	}

	return command
}

func versionCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Long:  `Print version info`,
	}

	command.RunE = func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "transmissionbot version: %s commit: %s built at: %s\n", Version, GitCommit, Timestamp)

		return nil
	}

	return command
}

