package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/projectconfig"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/utils"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/webapi"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opsdecide",
		Short: "opsdecide - decision support for airline operations",
		Long: `opsdecide scores operational decision scenarios (diversions, delay
management, route optimization, resource allocation) and turns the ranking
into explainable recommendations.

Scenarios are scored by an external analysis backend when one is configured
and by deterministic rules otherwise. An answer is always produced.`,
		Version:       webapi.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to "+projectconfig.FileName+" (default: search upward from the working directory)")

	var closeLog func() error
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		level := utils.ParseLevel(cfg.Logging.Level)
		if *debugLogging {
			level = slog.LevelDebug
		}
		logger, closer := utils.SetupLogger(cfg.LogFile(), level)
		slog.SetDefault(logger)
		closeLog = closer
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLog == nil {
			return nil
		}
		return closeLog()
	}

	// Add subcommands
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newQuickCommand())
	cmd.AddCommand(newCategoriesCommand())
	cmd.AddCommand(newInsightsCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}

// loadConfig reads --config when given, otherwise searches upward from the
// working directory. Commands built without the root flag get the search.
func loadConfig(cmd *cobra.Command) (*projectconfig.ProjectConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := projectconfig.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
