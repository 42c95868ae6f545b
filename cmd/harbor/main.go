package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "harbor",
		Short: "CLI for harbor wallet",
		Long: "This CLI lets you administer the wallets and swap executions " +
			"stored in a local harbor datadir",
		Version: formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(walletCmd, swapCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
