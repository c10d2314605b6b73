// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// Compactor runs CompactExpired on a fixed cadence as a suture.Service.
// Bounds database growth; correctness of authorization never depends on
// this running, since ActiveCapabilities filters at read time.
type Compactor struct {
	store      Store
	interval   time.Duration
	expiredFor time.Duration
}

// NewCompactor builds a background compactor. interval defaults to 10m,
// expiredFor (how long past expiry before deletion) defaults to 24h.
func NewCompactor(store Store, interval, expiredFor time.Duration) *Compactor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if expiredFor <= 0 {
		expiredFor = 24 * time.Hour
	}
	return &Compactor{store: store, interval: interval, expiredFor: expiredFor}
}

// Serve implements suture.Service.
func (c *Compactor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := c.store.CompactExpired(ctx, c.expiredFor)
			if err != nil {
				logging.Warn().Err(err).Msg("capability compaction failed")
				continue
			}
			if removed > 0 {
				logging.Debug().Int("removed", removed).Msg("capability compaction removed expired grants")
			}
		}
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (c *Compactor) String() string {
	return "capability-compactor"
}
