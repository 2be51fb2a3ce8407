package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lukman83/adscout/internal/crawl"
	"github.com/lukman83/adscout/internal/enrich"
	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/store"
)

// Mode selects which stages a run performs.
type Mode string

const (
	ModeScrape  Mode = "scrape"
	ModeProcess Mode = "process"
	ModeBoth    Mode = "both"
)

// ParseMode accepts scrape, process or both; empty means both.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeScrape, ModeProcess, ModeBoth:
		return m, nil
	case "":
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want scrape, process or both)", s)
	}
}

func (m Mode) crawls() bool    { return m == ModeScrape || m == ModeBoth }
func (m Mode) processes() bool { return m == ModeProcess || m == ModeBoth }

// Request describes one pipeline run.
type Request struct {
	Mode        Mode     `json:"mode"`
	URLs        []string `json:"urls,omitempty"`
	MaxListings int      `json:"max_listings,omitempty"`
}

// Report summarises a finished run.
type Report struct {
	Mode       Mode          `json:"mode"`
	URLs       []string      `json:"urls,omitempty"`
	Crawl      *crawl.Stats  `json:"crawl,omitempty"`
	CrawlError string        `json:"crawl_error,omitempty"`
	Process    *enrich.Stats `json:"process,omitempty"`
	Duration   string        `json:"duration"`
}

// Crawler is the crawl stage.
type Crawler interface {
	Run(ctx context.Context, urls []string, opts crawl.Options) (crawl.Stats, error)
}

// Processor is the enrichment stage.
type Processor interface {
	Run(ctx context.Context) (enrich.Stats, error)
}

// Deps wires a Runner.
type Deps struct {
	Crawler    Crawler
	Processor  Processor
	SearchURLs *store.SearchURLs
	DefaultURL string
	// BaseContext is the parent of runs started with Start; cancelling it
	// stops them at the next record boundary.
	BaseContext context.Context
	Logger      *slog.Logger
}

// Runner composes the crawl and enrichment stages.
type Runner struct {
	crawler    Crawler
	processor  Processor
	searchURLs *store.SearchURLs
	defaultURL string
	base       context.Context
	logger     *slog.Logger
	runs       *Tracker

	// one crawl at a time owns the browser profile
	crawlMu sync.Mutex
}

func NewRunner(d Deps) *Runner {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &Runner{
		crawler:    d.Crawler,
		processor:  d.Processor,
		searchURLs: d.SearchURLs,
		defaultURL: d.DefaultURL,
		base:       d.BaseContext,
		logger:     d.Logger.With("component", "pipeline"),
		runs:       NewTracker(100),
	}
}

// Runs returns the tracker of runs started with Start.
func (r *Runner) Runs() *Tracker { return r.runs }

// ResolveURLs picks the search URLs for a run: explicit ones, else the
// enabled configured entries, else the default URL.
func (r *Runner) ResolveURLs(explicit []string) []string {
	var urls []string
	for _, u := range explicit {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) > 0 {
		return urls
	}
	if r.searchURLs != nil {
		configured, err := store.EnabledURLs(r.searchURLs)
		if err != nil {
			r.logger.Warn("could not read search urls, using default", "error", err)
		} else if len(configured) > 0 {
			return configured
		}
	}
	return []string{r.defaultURL}
}

// Run executes the requested stages in order. In both mode a crawl
// failure is reported and enrichment still runs. The returned error
// joins the failures of all stages.
func (r *Runner) Run(ctx context.Context, req Request) (Report, error) {
	if req.Mode == "" {
		req.Mode = ModeBoth
	}
	start := time.Now()
	rep := Report{Mode: req.Mode}
	var errs []error

	if req.Mode.crawls() {
		rep.URLs = r.ResolveURLs(req.URLs)
		r.logger.Info("crawl started", "mode", req.Mode, "urls", len(rep.URLs), "max_listings", req.MaxListings)

		r.crawlMu.Lock()
		st, err := r.crawler.Run(ctx, rep.URLs, crawl.Options{
			MaxListings: req.MaxListings,
			Enrich:      req.Mode == ModeBoth,
		})
		r.crawlMu.Unlock()

		rep.Crawl = &st
		if err != nil {
			rep.CrawlError = err.Error()
			r.logger.Error("crawl failed", "error", err)
			errs = append(errs, fmt.Errorf("crawl: %w", err))
		}
	}

	if req.Mode.processes() && ctx.Err() == nil {
		st, err := r.processor.Run(ctx)
		rep.Process = &st
		if err != nil {
			r.logger.Error("enrichment failed", "error", err)
			errs = append(errs, fmt.Errorf("process: %w", err))
		}
	}

	rep.Duration = time.Since(start).Round(time.Millisecond).String()
	if err := ctx.Err(); err != nil && len(errs) == 0 {
		errs = append(errs, err)
	}
	r.logger.Info("run finished", "mode", req.Mode, "duration", rep.Duration, "errors", len(errs))
	return rep, errors.Join(errs...)
}

// Start runs req in the background and returns its run id immediately.
func (r *Runner) Start(req Request) string {
	id := uuid.NewString()
	r.runs.begin(id, req)
	go func() {
		ctx := logging.WithLogger(r.base, r.logger.With("run_id", id))
		rep, err := r.Run(ctx, req)
		r.runs.finish(id, rep, err)
	}()
	r.logger.Info("run scheduled", "run_id", id, "mode", req.Mode)
	return id
}
