package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukman83/adscout/internal/api"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/schedule"
	"github.com/lukman83/adscout/internal/store"
	mcpserver "github.com/lukman83/adscout/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the MCP endpoint and the scheduler",
	Long: "Serve the listings dataset and pipeline controls over HTTP. The MCP " +
		"server is mounted at /mcp. Scheduled runs follow schedule_config.json.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	serveCmd.Flags().Bool("no-scheduler", false, "Do not run scheduled pipeline runs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := buildServices(ctx, nil)

	var sched *schedule.Scheduler
	if !noScheduler {
		sched = newScheduler(svc)
	}

	validator, err := api.NewValidator()
	if err != nil {
		return err
	}
	mcpDeps := mcpserver.Deps{
		Listings:    svc.listings,
		Runner:      svc.runner,
		Schedule:    svc.schedule,
		BaseContext: ctx,
		Validator:   validator,
	}
	apiDeps := api.Deps{
		Listings:    svc.listings,
		SearchURLs:  svc.searchURLs,
		Schedule:    svc.schedule,
		Runner:      svc.runner,
		BaseContext: ctx,
		APIKey:      cfg.APIKey,
		Logger:      logger,
	}
	if sched != nil {
		mcpDeps.Scheduler = sched
		apiDeps.Scheduler = sched
	}
	apiDeps.MCP = mcpserver.Handler(mcpserver.NewServer(mcpDeps))

	handler, err := api.NewRouter(apiDeps)
	if err != nil {
		return err
	}
	srv := api.NewServer(":"+port, handler)

	if cfg.APIKey == "" {
		logger.Warn("API_KEY is not set; /api and /mcp are unauthenticated")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr, "mcp", "/mcp")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if sched != nil {
		sched.Start(gctx)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if sched != nil {
			sched.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newScheduler runs the full pipeline on the configured interval.
func newScheduler(svc *services) *schedule.Scheduler {
	run := func(ctx context.Context) error {
		_, err := svc.runner.Run(ctx, pipeline.Request{Mode: pipeline.ModeBoth})
		return err
	}
	source := func() (models.Schedule, error) {
		return store.ReadSchedule(svc.schedule)
	}
	return schedule.New(run, source, logger)
}
