package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lukman83/adscout/internal/browser"
	"github.com/lukman83/adscout/internal/enrich"
	"github.com/lukman83/adscout/internal/extract"
	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/throttle"
)

// Browser renders pages for one crawl.
type Browser interface {
	Render(ctx context.Context, url, readySelector string) (string, error)
	Close() error
}

// Opener acquires an authenticated browser. It returns an error wrapping
// browser.ErrNeedsLogin when no session can be established.
type Opener func(ctx context.Context) (Browser, error)

// Store is the part of the listing store the crawler needs.
type Store interface {
	IDs() (map[string]struct{}, error)
	Append(l models.Listing) (bool, error)
}

// Deps wires a Crawler.
type Deps struct {
	Open         Opener
	Extractor    *extract.Extractor
	Store        Store
	Classifier   enrich.ListingClassifier // used when Options.Enrich is set
	Pages        int                      // result pages per search URL
	PagePacer    *throttle.Pacer
	ListingPacer *throttle.Pacer
	Logger       *slog.Logger
}

// Options control one Run.
type Options struct {
	MaxListings int  // new listings per search URL, 0 for no limit
	Enrich      bool // classify each new listing before it is stored
}

// Stats summarises one crawl.
type Stats struct {
	PagesRendered   int `json:"pages_rendered"`
	PagesFailed     int `json:"pages_failed"`
	NewListings     int `json:"new_listings"`
	Duplicates      int `json:"duplicates"`
	NoURL           int `json:"no_url"`
	ListingFailures int `json:"listing_failures"`
	Enriched        int `json:"enriched"`
}

// Crawler walks search result pages and stores every listing not seen
// before, one record at a time.
type Crawler struct {
	Deps
	sel    extract.Selectors
	logger *slog.Logger
}

func New(d Deps) *Crawler {
	if d.Pages <= 0 {
		d.Pages = 1
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &Crawler{
		Deps:   d,
		sel:    d.Extractor.Selectors(),
		logger: d.Logger.With("component", "crawl"),
	}
}

// Run crawls each search URL in order. The browser is opened once and
// closed before Run returns. Failures on a single page or listing are
// logged and skipped; store write failures and cancellation end the run.
func (c *Crawler) Run(ctx context.Context, urls []string, opts Options) (Stats, error) {
	var st Stats
	b, err := c.Open(ctx)
	if err != nil {
		return st, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			c.logger.Warn("close browser", "error", err)
		}
	}()

	r := &pass{b: b, opts: opts, st: &st}
	for _, base := range urls {
		r.saved = 0
		for page := 1; page <= c.Pages; page++ {
			pageURL := extract.PageURL(base, page)
			if r.pageFetched {
				if err := c.PagePacer.WaitFor(ctx, pageURL); err != nil {
					return st, err
				}
			}
			r.pageFetched = true

			progress.Report(ctx, "Page %d/%d: %s", page, c.Pages, pageURL)
			summaries := c.summaries(ctx, b, pageURL, &st)
			if err := ctx.Err(); err != nil {
				return st, err
			}

			capped, err := c.crawlPage(ctx, r, summaries)
			if err != nil {
				return st, err
			}
			if capped {
				c.logger.Info("listing cap reached, skipping remaining pages", "url", base, "max", opts.MaxListings)
				break
			}
		}
	}

	c.logger.Info("crawl finished",
		"new", st.NewListings,
		"duplicates", st.Duplicates,
		"pages", st.PagesRendered,
		"pages_failed", st.PagesFailed,
		"failures", st.ListingFailures)
	return st, nil
}

// summaries renders one result page. A page that fails to render has no
// summaries.
func (c *Crawler) summaries(ctx context.Context, b Browser, pageURL string, st *Stats) []models.Listing {
	doc, err := b.Render(ctx, pageURL, c.sel.ResultsReady)
	if err != nil {
		st.PagesFailed++
		c.logger.Warn("results page did not render", "url", pageURL, "error", err)
		return nil
	}
	st.PagesRendered++
	summaries, err := c.Extractor.Summaries(doc)
	if err != nil {
		c.logger.Warn("results page did not parse", "url", pageURL, "error", err)
		return nil
	}
	c.logger.Debug("results page", "url", pageURL, "items", len(summaries))
	return summaries
}

// pass is the state of one Run shared across pages and search URLs.
type pass struct {
	b     Browser
	opts  Options
	st    *Stats
	saved int // new listings stored for the current search URL

	pageFetched   bool
	detailFetched bool
}

func (r *pass) capReached() bool {
	return r.opts.MaxListings > 0 && r.saved >= r.opts.MaxListings
}

func (c *Crawler) crawlPage(ctx context.Context, r *pass, summaries []models.Listing) (capped bool, err error) {
	st := r.st
	if r.capReached() {
		return true, nil
	}
	if len(summaries) == 0 {
		return false, nil
	}
	known, err := c.Store.IDs()
	if err != nil {
		return false, fmt.Errorf("load known ids: %w", err)
	}

	for _, l := range summaries {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if _, ok := known[l.ID]; ok {
			st.Duplicates++
			c.logger.Debug("skipping known listing", "id", l.ID)
			continue
		}
		if l.URL == "" {
			st.NoURL++
			c.logger.Debug("skipping listing without detail link", "title", l.Title)
			continue
		}

		if r.detailFetched {
			if err := c.ListingPacer.WaitFor(ctx, l.URL); err != nil {
				return false, err
			}
		}
		r.detailFetched = true

		stored, err := c.crawlListing(ctx, r.b, l, r.opts, st)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			var we *writeError
			if errors.As(err, &we) {
				return false, err
			}
			st.ListingFailures++
			c.logger.Warn("listing failed", "id", l.ID, "url", l.URL, "error", err)
			continue
		}
		if !stored {
			st.Duplicates++
			continue
		}

		r.saved++
		st.NewListings++
		if l.ID != "" {
			known[l.ID] = struct{}{}
		}
		if r.capReached() {
			return true, nil
		}
	}
	return false, nil
}

type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

func (c *Crawler) crawlListing(ctx context.Context, b Browser, l models.Listing, opts Options, st *Stats) (bool, error) {
	progress.Report(ctx, "Listing %s: %s", l.ID, l.Title)

	doc, err := b.Render(ctx, l.URL, c.sel.DetailReady)
	switch {
	case err == nil:
		l.DetailedDescription = c.Extractor.Detail(doc)
	case errors.Is(err, browser.ErrRenderTimeout):
		c.logger.Warn("detail page timed out, storing without description", "id", l.ID, "url", l.URL)
	default:
		return false, fmt.Errorf("render detail: %w", err)
	}

	if opts.Enrich && c.Classifier != nil && l.DetailedDescription != "" {
		v := c.Classifier.Classify(ctx, l.Title, l.DetailedDescription)
		l.Apply(v.Enrichment)
		if v.Outcome == enrich.Classified {
			st.Enriched++
		}
	}

	ok, err := c.Store.Append(l)
	if err != nil {
		return false, &writeError{err}
	}
	if ok {
		c.logger.Info("stored listing", "id", l.ID, "title", l.Title, "price", l.Price, "enriched", l.LLMProcessed)
	}
	return ok, nil
}
