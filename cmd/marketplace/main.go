// Command marketplace runs the affiliate listing marketplace API and its
// supporting job workers.
package main

import (
	"fmt"
	"os"

	"affiliate-marketplace/internal/common/config"
	"affiliate-marketplace/internal/common/logger"

	"github.com/spf13/cobra"
)

var (
	// cfgFile overrides the configs/ lookup when set.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "marketplace",
		Short: "Affiliate listing marketplace",
		Long: `Affiliate listing marketplace.

Creators submit listings, admins approve or reject them, visitors browse
approved listings and keep a list of favorites. "serve" runs the HTTP API,
the notification dispatcher and, when Camunda is enabled, the review-listing
job worker. "migrate" manages the PostgreSQL schema.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml)")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output).
		WithFields(map[string]interface{}{
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		})
}
