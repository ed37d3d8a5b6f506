package querycache

import (
	"board_query_cache/internal/durable"
	"board_query_cache/internal/obs"
)

// writeFailedLocked applies the write failure policy: a quota error resets
// the whole cache, anything else leaves memory authoritative.
func (c *Cache) writeFailedLocked(op string, key string, err error) SetOutcome {
	c.metrics.RecordDurableError(op)
	if durable.IsQuotaExceeded(err) {
		c.logger.Printf("querycache_write op=%s key=%s result=reset reason=quota_exceeded", op, key)
		c.recoverLocked("quota_exceeded", err)
		return SetReset
	}
	c.logger.Printf("querycache_write op=%s key=%s result=memory_only error=%v", op, key, err)
	return SetMemoryOnly
}

// recoverLocked collapses the cache to empty after corruption or a quota
// failure.
func (c *Cache) recoverLocked(reason string, cause error) {
	removed := c.clearLocked()
	c.metrics.RecordRecovery(reason)
	c.metrics.RecordEviction(reason, removed)
	c.metrics.SetEntries(0)

	event := obs.CacheEvent{Event: "reset", Reason: reason, Removed: removed}
	if cause != nil {
		event.Error = cause.Error()
	}
	c.events.Log(event)
}

// clearLocked empties memory and removes every record the cache owns: the
// keys held in memory plus those listed by a readable manifest.
func (c *Cache) clearLocked() int {
	removed := len(c.entries)
	owned := make([]string, 0, len(c.entries))
	for key := range c.entries {
		owned = append(owned, key)
	}
	c.entries = make(map[string]Entry)
	c.order = make(map[string]uint64)

	if c.store == nil {
		return removed
	}
	if manifest, state := c.readManifestLocked(); state == manifestOK {
		for _, key := range manifest {
			if !containsKey(owned, key) {
				owned = append(owned, key)
			}
		}
	}
	for _, key := range owned {
		c.removeRecordLocked(key)
	}
	c.removeRecordLocked(c.manifestKey)
	return removed
}
