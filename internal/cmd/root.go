package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"turing-log-tail/internal/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "logtail",
	Short: "logtail - live log viewer for routers and jobs",
	Long: `logtail follows the pod logs of a router or job component.
It polls the platform logs endpoint, renders each record as
"<timestamp> - <payload>" in your timezone and keeps tailing until interrupted.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "diagnostic log format: text, json")
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}
