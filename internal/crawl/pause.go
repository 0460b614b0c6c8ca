package crawl

import (
	"context"
	"time"
)

// pause sleeps for the politeness delay, returning early when the run is
// cancelled.
func pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
