package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/browser"
	"github.com/lukman83/adscout/internal/crawl"
	"github.com/lukman83/adscout/internal/enrich"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrawler struct {
	urls []string
	opts crawl.Options
	err  error
}

func (f *fakeCrawler) Run(_ context.Context, urls []string, opts crawl.Options) (crawl.Stats, error) {
	f.urls, f.opts = urls, opts
	return crawl.Stats{NewListings: len(urls)}, f.err
}

type fakeProcessor struct{ calls int }

func (f *fakeProcessor) Run(context.Context) (enrich.Stats, error) {
	f.calls++
	return enrich.Stats{Enriched: 2}, nil
}

const defaultURL = "https://site.example/s-notebooks/k0c278"

func newRunner(t *testing.T, c Crawler, p Processor) (*Runner, *store.SearchURLs) {
	t.Helper()
	urls := store.NewJSONFile[[]models.SearchURL](filepath.Join(t.TempDir(), "search_urls.json"))
	return NewRunner(Deps{Crawler: c, Processor: p, SearchURLs: urls, DefaultURL: defaultURL}), urls
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"scrape": ModeScrape, "PROCESS": ModeProcess, " both ": ModeBoth, "": ModeBoth} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("crawl")
	assert.Error(t, err)
}

func TestResolveURLsOrder(t *testing.T) {
	r, urls := newRunner(t, nil, nil)

	assert.Equal(t, []string{defaultURL}, r.ResolveURLs(nil), "no config file")

	off := false
	require.NoError(t, urls.Write([]models.SearchURL{
		{URL: "https://site.example/a"},
		{URL: "https://site.example/b", Enabled: &off},
		{URL: "https://site.example/c"},
	}))
	assert.Equal(t, []string{"https://site.example/a", "https://site.example/c"}, r.ResolveURLs(nil))
	assert.Equal(t, []string{"https://site.example/x"}, r.ResolveURLs([]string{" https://site.example/x ", ""}))

	require.NoError(t, urls.Write([]models.SearchURL{{URL: "https://site.example/b", Enabled: &off}}))
	assert.Equal(t, []string{defaultURL}, r.ResolveURLs(nil), "all disabled")

	require.NoError(t, os.WriteFile(urls.Path(), []byte("[{"), 0o644))
	assert.Equal(t, []string{defaultURL}, r.ResolveURLs(nil), "unreadable config")
}

func TestRunModes(t *testing.T) {
	tests := []struct {
		mode       Mode
		crawled    bool
		processed  bool
		enrichLive bool
	}{
		{ModeScrape, true, false, false},
		{ModeProcess, false, true, false},
		{ModeBoth, true, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			c, p := &fakeCrawler{}, &fakeProcessor{}
			r, _ := newRunner(t, c, p)
			rep, err := r.Run(context.Background(), Request{Mode: tt.mode, MaxListings: 3})
			require.NoError(t, err)
			assert.Equal(t, tt.crawled, rep.Crawl != nil)
			assert.Equal(t, tt.processed, p.calls == 1)
			if tt.crawled {
				assert.Equal(t, []string{defaultURL}, c.urls)
				assert.Equal(t, 3, c.opts.MaxListings)
				assert.Equal(t, tt.enrichLive, c.opts.Enrich)
			}
		})
	}
}

func TestRunCrawlFailureStillProcesses(t *testing.T) {
	c := &fakeCrawler{err: browser.ErrNeedsLogin}
	p := &fakeProcessor{}
	r, _ := newRunner(t, c, p)

	rep, err := r.Run(context.Background(), Request{Mode: ModeBoth})
	assert.True(t, errors.Is(err, browser.ErrNeedsLogin))
	assert.NotEmpty(t, rep.CrawlError)
	assert.Equal(t, 1, p.calls)
	require.NotNil(t, rep.Process)
	assert.Equal(t, 2, rep.Process.Enriched)
}

func TestStartTracksRun(t *testing.T) {
	r, _ := newRunner(t, &fakeCrawler{}, &fakeProcessor{})
	id := r.Start(Request{Mode: ModeProcess})
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		rec, ok := r.Runs().Get(id)
		return ok && rec.Status == StatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ := r.Runs().Get(id)
	require.NotNil(t, rec.Report)
	assert.Equal(t, ModeProcess, rec.Report.Mode)
	assert.NotNil(t, rec.FinishedAt)
	assert.Zero(t, r.Runs().Active())

	_, ok := r.Runs().Get("nope")
	assert.False(t, ok)
}

func TestTrackerPrunesFinishedRuns(t *testing.T) {
	tr := NewTracker(2)
	tr.begin("a", Request{})
	tr.finish("a", Report{}, nil)
	tr.begin("b", Request{})
	tr.begin("c", Request{})

	_, ok := tr.Get("a")
	assert.False(t, ok, "oldest finished run dropped")
	_, ok = tr.Get("b")
	assert.True(t, ok)

	tr.begin("d", Request{})
	_, ok = tr.Get("b")
	assert.True(t, ok, "running runs are kept")
	assert.Equal(t, 3, tr.Active())
}
