package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/config"
	"github.com/fentz26/dealflow/internal/controlplane"
)

var rootCmd = &cobra.Command{
	Use:     "dealflow",
	Short:   "dealflow - M&A deal checklists and progress",
	Long:    `dealflow instantiates buy-side and sell-side deal checklists from templates, tracks task status and reports phase progress, workstreams and overdue work.`,
	Version: controlplane.Version,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7477", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(checklistCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(mcpCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
