package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfigFile = "config.yml"

func main() {
	serve := serveCommand()

	rootCmd := &cobra.Command{
		Use:   "transmissionbot",
		Short: "Telegram bot for a Transmission daemon",
		Long: `A Telegram bot that adds torrents to Transmission, searches the tracker
and notifies chats when their downloads finish.
`,
		RunE:         serve.RunE,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", flagConfigFile, "Config file")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(reconcileCommand())
	rootCmd.AddCommand(waitListCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
