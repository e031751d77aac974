package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"salesync/internal/app/server/config"
	"salesync/internal/utils/logger"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "salesync",
	Short: "Salesync - sale synchronization server",
	Long: `Salesync accepts sale batches recorded by offline point-of-sale
clients and reconciles them against the server of record: validation,
duplicate detection, version conflicts and their resolution.`,
	PersistentPreRun: setup,
	SilenceUsage:     true,
	SilenceErrors:    true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) {
	cfg = config.MustLoad()
	log = logger.New(cfg.Env)
}
