package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukman83/adscout/internal/api"
	"github.com/lukman83/adscout/internal/logging"
	mcpserver "github.com/lukman83/adscout/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol
	logger = logging.New(logging.Options{Writer: os.Stderr, Level: cfg.LogLevel, Format: "json"})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := buildServices(ctx, nil)
	validator, err := api.NewValidator()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting adscout MCP server on stdio...")

	s := mcpserver.NewServer(mcpserver.Deps{
		Listings:    svc.listings,
		Runner:      svc.runner,
		Schedule:    svc.schedule,
		BaseContext: ctx,
		Validator:   validator,
	})
	if err := mcpserver.Serve(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
