package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Pinger interface {
	Ready(ctx context.Context) error
}

// StartReadinessJob pings the store once right away and then on every tick,
// calling report whenever readiness changes. It stops with ctx.
func StartReadinessJob(ctx context.Context, interval time.Duration, store Pinger, report func(ready bool), log logrus.FieldLogger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	var known, last bool
	check := func() {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		err := store.Ready(tickCtx)
		cancel()
		ready := err == nil
		if known && ready == last {
			return
		}
		known, last = true, ready
		if ready {
			log.Info("store ready")
		} else {
			log.WithError(err).Warn("store not ready")
		}
		report(ready)
	}
	check()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}
