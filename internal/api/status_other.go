//go:build !unix

package api

import "time"

func processUsage() (cpu time.Duration, maxRSS uint64, ok bool) {
	return 0, 0, false
}
