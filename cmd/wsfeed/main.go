package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wsfeed",
	Short: "Resilient subscription client for exchange websocket feeds",
	Long: `wsfeed connects to an exchange websocket feed, subscribes to heartbeat and ticker channels,
verifies the acknowledgement and keeps the subscription alive across disconnects, forwarding
every ticker to the configured sinks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
