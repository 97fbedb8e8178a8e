package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/batch-extractor-bot/pkg/config"
	"github.com/noah-isme/batch-extractor-bot/pkg/logger"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	cfgKey    contextKey = "cfg"
	loggerKey contextKey = "logger"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

var rootCmd = &cobra.Command{
	Use:     "batchbot",
	Short:   "Search course batches and export their lesson links",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if catalog, _ := cmd.Flags().GetString("catalog"); catalog != "" {
			cfg.Catalog.File = catalog
		}

		var logr *zap.Logger
		if _, ok := cmd.Annotations["service"]; ok {
			logr, err = logger.New(cfg)
		} else {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logr, err = logger.NewCLI(verbose)
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)
		cmd.SetContext(context.WithValue(ctx, loggerKey, logr))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logr := getLogger(cmd); logr != nil {
			_ = logr.Sync()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("catalog", "", "Path to the batch catalog JSON file (overrides CATALOG_FILE)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show info-level logs for one-shot commands")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(serveCmd, searchCmd, summaryCmd, exportCmd)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getLogger(cmd *cobra.Command) *zap.Logger {
	if cmd.Context() == nil {
		return nil
	}
	logr, _ := cmd.Context().Value(loggerKey).(*zap.Logger)
	return logr
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		return 1
	}
	return 0
}
