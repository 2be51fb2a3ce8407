package httputil

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// ThrottledTransport is an http.RoundTripper that applies default headers
// and waits for a rate limiter token before sending.
type ThrottledTransport struct {
	Base        http.RoundTripper
	Headers     http.Header
	RateLimiter *rate.Limiter
}

// NewThrottledTransport limits requests to perSecond with a burst of one.
func NewThrottledTransport(base http.RoundTripper, perSecond float64, headers http.Header) *ThrottledTransport {
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &ThrottledTransport{Base: base, Headers: headers, RateLimiter: limiter}
}

func (t *ThrottledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.Headers) > 0 {
		req = req.Clone(req.Context())
		for key, vals := range t.Headers {
			if req.Header.Get(key) == "" {
				for _, v := range vals {
					req.Header.Add(key, v)
				}
			}
		}
	}

	if t.RateLimiter != nil {
		if err := t.RateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	transport := t.Base
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}
