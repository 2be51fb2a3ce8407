package httputil

import "net/http"

// JSONHeaders returns headers for JSON API calls that accept compressed
// responses.
func JSONHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("User-Agent", "adscout/1.0")
	return h
}
