package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/controlplane"
	"github.com/fentz26/dealflow/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve checklist tools over MCP stdio",
	Long:  `Runs a Model Context Protocol server on stdin/stdout exposing template, checklist, progress and task tools backed by the configured store.`,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol; logs go to stderr only.
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	rt, err := openEngine(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return mcp.Serve(mcp.NewServer(rt.service, controlplane.Version))
}
