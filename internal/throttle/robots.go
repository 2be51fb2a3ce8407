package throttle

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsTTL      = time.Hour
	robotsRetryTTL = 5 * time.Minute
	robotsMaxBytes = 512 << 10
)

// robotsEntry is the cached policy of one origin. A nil data means
// robots.txt could not be fetched; everything is allowed until expires.
type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

func (e robotsEntry) group(userAgent string) *robotstxt.Group {
	if e.data == nil {
		return nil
	}
	return e.data.FindGroup(userAgent)
}

// RobotsChecker gates marketplace URLs on robots.txt and reports the
// Crawl-delay the site asks for. Policies are cached per origin.
type RobotsChecker struct {
	client  *http.Client
	enabled bool
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]robotsEntry
}

// NewRobotsChecker creates a checker. A disabled checker allows everything
// and never fetches.
func NewRobotsChecker(client *http.Client, enabled bool) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsChecker{
		client:  client,
		enabled: enabled,
		now:     time.Now,
		entries: make(map[string]robotsEntry),
	}
}

// IsAllowed reports whether userAgent may fetch rawURL. An unreachable
// robots.txt allows the fetch.
func (r *RobotsChecker) IsAllowed(userAgent, rawURL string) (bool, error) {
	if r == nil || !r.enabled {
		return true, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	e := r.entry(u)
	if e.data == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return e.data.TestAgent(path, userAgent), nil
}

// CrawlDelay is the Crawl-delay robots.txt sets for userAgent on the
// origin of rawURL, or zero.
func (r *RobotsChecker) CrawlDelay(userAgent, rawURL string) time.Duration {
	if r == nil || !r.enabled {
		return 0
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0
	}
	if g := r.entry(u).group(userAgent); g != nil {
		return g.CrawlDelay
	}
	return 0
}

// entry returns the cached policy for the origin of u, fetching it when
// absent or expired. The lock is held across the fetch so one origin is
// fetched once.
func (r *RobotsChecker) entry(u *url.URL) robotsEntry {
	origin := u.Scheme + "://" + u.Host

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.entries[origin]; ok && now.Before(e.expires) {
		return e
	}

	e := robotsEntry{expires: now.Add(robotsTTL)}
	data, err := r.fetch(origin)
	if err != nil {
		e.expires = now.Add(robotsRetryTTL)
	} else {
		e.data = data
	}
	r.entries[origin] = e
	return e
}

func (r *RobotsChecker) fetch(origin string) (*robotstxt.RobotsData, error) {
	resp, err := r.client.Get(origin + "/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	// 4xx means no rules, 5xx means disallow all
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
