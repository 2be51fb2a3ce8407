package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lukman83/adscout/internal/browser"
	"github.com/lukman83/adscout/internal/crawl"
	"github.com/lukman83/adscout/internal/enrich"
	"github.com/lukman83/adscout/internal/extract"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/throttle"
)

// services are the long-lived components shared by the commands.
type services struct {
	listings   *store.ListingStore
	searchURLs *store.SearchURLs
	schedule   *store.ScheduleFile
	classifier *enrich.Classifier
	runner     *pipeline.Runner
}

// buildServices wires the pipeline. login, when non-nil, is offered the
// chance to authenticate interactively when no saved session is valid.
func buildServices(ctx context.Context, login func(context.Context) error) *services {
	s := &services{
		listings:   store.New(cfg.ListingsFile(), logger),
		searchURLs: store.NewJSONFile[[]models.SearchURL](cfg.SearchURLsFile()),
		schedule:   store.NewJSONFile[models.Schedule](cfg.ScheduleFile()),
	}

	llm := enrich.NewClient(enrich.ClientOptions{
		URL:       cfg.LLMURL,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeout,
		Rate:      cfg.LLMRate,
		Retries:   cfg.LLMRetries,
		Logger:    logger,
	})
	s.classifier = enrich.NewClassifier(llm, logger)

	robots := newRobotsChecker()
	crawlDelay := func(u string) time.Duration { return robots.CrawlDelay(browser.UserAgent, u) }

	opts := browserOptions(robots)
	if login != nil {
		opts.Headless = false
	}
	crawler := crawl.New(crawl.Deps{
		Open: func(ctx context.Context) (crawl.Browser, error) {
			sess, err := browser.Connect(ctx, opts, login)
			if err != nil {
				return nil, err
			}
			return sess, nil
		},
		Extractor:    extract.New(cfg.SiteOrigin, extract.DefaultSelectors(), logger),
		Store:        s.listings,
		Classifier:   s.classifier,
		Pages:        cfg.PagesToScrape,
		PagePacer:    &throttle.Pacer{Delay: cfg.DelayBetweenPages, Jitter: cfg.DelayBetweenPages / 5, Floor: crawlDelay},
		ListingPacer: &throttle.Pacer{Delay: cfg.DelayBetweenListings, Jitter: cfg.DelayBetweenListings / 5, Floor: crawlDelay},
		Logger:       logger,
	})

	s.runner = pipeline.NewRunner(pipeline.Deps{
		Crawler:     crawler,
		Processor:   enrich.NewProcessor(s.listings, s.classifier, logger),
		SearchURLs:  s.searchURLs,
		DefaultURL:  cfg.DefaultSearchURL,
		BaseContext: ctx,
		Logger:      logger,
	})
	return s
}

func newRobotsChecker() *throttle.RobotsChecker {
	return throttle.NewRobotsChecker(&http.Client{Timeout: 15 * time.Second}, cfg.RespectRobots)
}

func browserOptions(robots *throttle.RobotsChecker) browser.Options {
	return browser.Options{
		Headless:      cfg.Headless,
		Bin:           cfg.BrowserBin,
		ControlURL:    cfg.BrowserURL,
		ProxyURL:      cfg.ProxyURL,
		ProfileDir:    cfg.ProfileDir(),
		CookiesFile:   cfg.CookiesFile(),
		HomeURL:       cfg.SiteOrigin,
		RenderTimeout: cfg.RenderTimeout,
		Robots:        robots,
		Logger:        logger,
	}
}

// promptEnter waits for the user to press Enter after logging in.
func promptEnter(ctx context.Context) error {
	fmt.Fprintln(os.Stderr, "Log in to the marketplace in the browser window, then press Enter here.")
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
