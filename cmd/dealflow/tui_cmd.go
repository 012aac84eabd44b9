package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/notify"
	"github.com/fentz26/dealflow/internal/tui"
)

var tuiDealType string

var tuiCmd = &cobra.Command{
	Use:   "tui <deal-id>",
	Short: "Open the interactive deal board",
	Args:  cobra.ExactArgs(1),
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiDealType, "type", "", "Deal type for deals without a template checklist")
}

func runTUI(cmd *cobra.Command, args []string) error {
	var dt models.DealType
	if tuiDealType != "" {
		parsed, err := models.ParseDealType(tuiDealType)
		if err != nil {
			return err
		}
		dt = parsed
	}

	if !isDaemonRunning(apiAddr) {
		fmt.Println("dealflow daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	app := tui.New(apiAddr, args[0], dt)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if events := subscribeDeal(ctx, args[0]); events != nil {
		app.SetEvents(events)
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// subscribeDeal listens on the deal's Redis channel when Redis is configured.
// The board falls back to polling when it is not.
func subscribeDeal(ctx context.Context, dealID string) <-chan notify.Event {
	cfg, err := loadConfig()
	if err != nil || cfg.Redis.Addr == "" {
		return nil
	}
	rp := newRedis(cfg)
	events, err := rp.Subscribe(ctx, dealID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "live updates disabled: %v\n", err)
		_ = rp.Close()
		return nil
	}
	go func() {
		<-ctx.Done()
		_ = rp.Close()
	}()
	return events
}

func isDaemonRunning(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(exe, args...)
	// Detach so the daemon survives the TUI exiting.
	configureDaemonProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ {
		if isDaemonRunning(apiAddr) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr)
}
