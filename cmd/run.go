package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukman83/adscout/internal/browser"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/ui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl search results and/or enrich stored listings",
	Long: "Run the pipeline once. Mode scrape only harvests new listings, " +
		"process only classifies stored ones, both does the two in order.",
	Example: `  adscout run
  adscout run --mode scrape --urls "https://www.kleinanzeigen.de/s-notebooks/lenovo/k0c278" --max-listings 10
  adscout run --mode process --progress`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("mode", "both", "Stages to run: scrape, process, both")
	runCmd.Flags().StringSlice("urls", nil, "Search URLs to crawl instead of the configured ones")
	runCmd.Flags().Int("max-listings", 0, "Stop after this many new listings per search URL (0 = no limit)")
	runCmd.Flags().Bool("login-if-needed", false, "Open a visible browser and wait for a manual login when the saved session is invalid")
	runCmd.Flags().Bool("progress", false, "Show a progress spinner on stderr")
	runCmd.Flags().Bool("json", false, "Print the run report as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	urls, _ := cmd.Flags().GetStringSlice("urls")
	maxListings, _ := cmd.Flags().GetInt("max-listings")
	loginIfNeeded, _ := cmd.Flags().GetBool("login-if-needed")
	showProgress, _ := cmd.Flags().GetBool("progress")
	asJSON, _ := cmd.Flags().GetBool("json")

	mode, err := pipeline.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	if maxListings < 0 {
		return fmt.Errorf("--max-listings must not be negative")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var login func(context.Context) error
	if loginIfNeeded {
		login = promptEnter
	}
	svc := buildServices(ctx, login)

	var spin *ui.Spinner
	if showProgress {
		spin = ui.NewSpinner(os.Stderr)
		spin.Start("Starting " + string(mode) + " run...")
		ctx = progress.With(ctx, spin.Update)
		defer spin.Stop()
	}

	rep, err := svc.runner.Run(ctx, pipeline.Request{Mode: mode, URLs: urls, MaxListings: maxListings})
	if spin != nil {
		spin.Stop()
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			return encErr
		}
	} else {
		printReport(rep)
	}

	switch {
	case errors.Is(err, browser.ErrNeedsLogin):
		return fmt.Errorf("marketplace session is not logged in; run `adscout login` or pass --login-if-needed")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("run interrupted")
	case err != nil:
		return err
	}
	return nil
}

func printReport(rep pipeline.Report) {
	fmt.Fprintf(os.Stdout, "Mode: %s  (%s)\n", rep.Mode, rep.Duration)
	if c := rep.Crawl; c != nil {
		fmt.Fprintf(os.Stdout, "Crawl: %d pages (%d failed), %d new listings, %d duplicates, %d listing failures, %d enriched\n",
			c.PagesRendered, c.PagesFailed, c.NewListings, c.Duplicates, c.ListingFailures, c.Enriched)
		if rep.CrawlError != "" {
			fmt.Fprintf(os.Stdout, "Crawl error: %s\n", rep.CrawlError)
		}
	}
	if p := rep.Process; p != nil {
		fmt.Fprintf(os.Stdout, "Process: %d scanned, %d enriched, %d unparseable, %d failed, %d without description\n",
			p.Scanned, p.Enriched, p.Unparseable, p.Failed, p.NoDescription)
	}
}
