package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chronic-risk-monitor/internal/config"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "riskctl",
		Short:         "Operator tools for the chronic risk monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config.yaml (default: search ./, ./config)")

	load := func() (*domain.Config, *logrus.Logger, error) {
		var opts []config.Option
		if configFile != "" {
			opts = append(opts, config.WithConfigFile(configFile))
		}
		m, err := config.NewManager(opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := m.Validate(); err != nil {
			return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		cfg := m.GetConfig()
		return cfg, logging.NewWithOutput(cfg.Logging, os.Stderr), nil
	}

	rootCmd.AddCommand(
		inferCmd(load),
		tickCmd(load),
		exportCmd(load),
		migrateCmd(load),
		mcpRegisterCmd(),
	)
	return rootCmd
}
