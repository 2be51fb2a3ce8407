package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/store"
	"github.com/spf13/cobra"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Show stored listings",
	RunE:  runListings,
}

func init() {
	listingsCmd.Flags().String("format", "table", "Output format: table, json")
	listingsCmd.Flags().Bool("only-full-info", false, "Only listings whose three attributes are all determined")
	listingsCmd.Flags().Int("limit", 0, "Show at most this many listings, newest last (0 = all)")
	rootCmd.AddCommand(listingsCmd)
}

func runListings(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	onlyFull, _ := cmd.Flags().GetBool("only-full-info")
	limit, _ := cmd.Flags().GetInt("limit")

	all, err := store.New(cfg.ListingsFile(), logger).Load()
	if err != nil {
		return err
	}

	listings := all
	if onlyFull {
		listings = listings[:0:0]
		for _, l := range all {
			if l.HasFullInfo() {
				listings = append(listings, l)
			}
		}
	}
	if limit > 0 && len(listings) > limit {
		listings = listings[len(listings)-limit:]
	}

	switch format {
	case "json":
		if listings == nil {
			listings = []models.Listing{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	case "table":
		if len(listings) == 0 {
			fmt.Fprintln(os.Stderr, "No listings stored yet.")
			return nil
		}
		printListingsTable(os.Stdout, listings)
		fmt.Fprintf(os.Stderr, "\n%d of %d listings\n", len(listings), len(all))
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
}
