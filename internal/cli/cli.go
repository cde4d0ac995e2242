package cli

import (
	"os"

	"github.com/NksEBP/gc-agent/internal/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gc-agent",
	Short: "Inbox assistant that schedules meetings and triages urgent mail",
	Long: `gc-agent reads unprocessed inbox mail and works through each message:
meeting requests with a concrete time are booked or answered with
alternative slots, confirmation replies are committed to the calendar,
and remaining mail is triaged so urgent messages get a draft response.

Usage examples:
  gc-agent run           # single-model workflow
  gc-agent multiagent    # per-stage models with policy-grounded drafting`,
}

// Execute runs the CLI with the provided config.
func Execute(config *config.Config) {
	cfg = config
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(multiagentCmd)
}
