package cmd

import (
	"fmt"
	"io"
	"net/url"

	"github.com/lukman83/adscout/internal/models"
)

// printListingsTable prints listings in a human-friendly card layout.
func printListingsTable(w io.Writer, listings []models.Listing) {
	for i, l := range listings {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, truncate(l.Title, 80))

		line := "    Price: " + orDash(l.Price)
		if l.Location != "" {
			line += "  |  " + l.Location
		}
		fmt.Fprintln(w, line)

		fmt.Fprintf(w, "    %s\n", verdictLine(l))
		fmt.Fprintf(w, "    %s\n", cleanURL(l.URL))
	}
}

func verdictLine(l models.Listing) string {
	if !l.Enriched() {
		return "Enrichment: pending"
	}
	return fmt.Sprintf("RAM>16GB: %s  |  Screen<=15\": %s  |  Res>FullHD: %s",
		triLabel(l.RAMMore), triLabel(l.ScreenSmall), triLabel(l.ScreenHighRes))
}

func triLabel(t *models.Tri) string {
	if t == nil {
		return "?"
	}
	switch *t {
	case models.True:
		return "yes"
	case models.False:
		return "no"
	default:
		return "?"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// cleanURL strips tracking query params and returns just the ad page URL.
func cleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
