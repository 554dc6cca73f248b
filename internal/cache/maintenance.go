package cache

import (
	"context"
	"time"
)

// Start runs the maintenance loop: every sweep it drops the cache if the
// dataset changed, otherwise it evicts expired entries. Blocks until ctx is
// cancelled.
func (c *ReportCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.Sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("report cache maintenance stopped", "component", "cache")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick runs one iteration of the maintenance loop.
func (c *ReportCache) tick() {
	if c.datasetChanged() {
		c.invalidate()
		return
	}
	c.evictExpired()
}

// datasetChanged checks if the catalog has been replaced since the cache was
// last cleared.
func (c *ReportCache) datasetChanged() bool {
	if c.dataset == nil {
		return false
	}
	return c.dataset.Version() != c.currentVersion.Load()
}

// invalidate drops all entries and adopts the new dataset version.
func (c *ReportCache) invalidate() {
	v := c.dataset.Version()
	old := c.currentVersion.Swap(v)
	removed := c.Purge()

	c.logger.Info("catalog changed, report cache cleared",
		"component", "cache",
		"old_dataset_version", old,
		"new_dataset_version", v,
		"entries_removed", removed,
	)
}

// Sync clears the cache immediately when the dataset changed, without
// waiting for the next sweep. Callers run it before a lookup.
func (c *ReportCache) Sync() {
	if c.datasetChanged() {
		c.invalidate()
	}
}
