package throttle

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer enforces a pause between consecutive requests to the marketplace.
// Jitter, when set, adds a random extra of up to Jitter on top of Delay.
// Floor, when set, raises the pause for a URL to at least the value it
// returns (typically the robots.txt Crawl-delay).
type Pacer struct {
	Delay  time.Duration
	Jitter time.Duration
	Floor  func(nextURL string) time.Duration
}

// NewPacer returns a pacer with a fixed delay and no jitter.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{Delay: delay}
}

// Wait sleeps for the next pause, returning early if ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.WaitFor(ctx, "")
}

// WaitFor is Wait before fetching nextURL, honouring Floor.
func (p *Pacer) WaitFor(ctx context.Context, nextURL string) error {
	if p == nil {
		return ctx.Err()
	}
	d := p.Next()
	if p.Floor != nil && nextURL != "" {
		d = max(d, p.Floor(nextURL))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the duration of the next pause, before any Floor.
func (p *Pacer) Next() time.Duration {
	if p.Jitter <= 0 {
		return p.Delay
	}
	return p.Delay + time.Duration(rand.Int64N(int64(p.Jitter)))
}
