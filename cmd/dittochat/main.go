// Command dittochat runs the DittoChat relay server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dittochat",
		Short: "A line-oriented TCP chat relay",
		Long: `DittoChat relays chat lines between a bounded number of clients.

Clients connect with any line-oriented TCP tool (nc, telnet) or over
WebSocket, pick a username and chat. Every event is written to a journal
that clients can read back with /logs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		initCmd(),
		schemaCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
