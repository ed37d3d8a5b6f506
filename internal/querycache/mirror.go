package querycache

import (
	"encoding/json"

	"board_query_cache/internal/obs"
)

type manifestState int

const (
	manifestOK manifestState = iota
	manifestMissing
	manifestCorrupt
	manifestUnreadable
)

// LoadReport summarizes a rehydration pass.
type LoadReport struct {
	Restored int
	Expired  int
	Missing  int
	Trimmed  int
	Reset    bool
}

// Load rehydrates the in-memory index from the durable mirror. It is meant
// to run once, before the cache serves reads.
func (c *Cache) Load() LoadReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := LoadReport{}
	if c.store == nil {
		return report
	}

	manifest, state := c.readManifestLocked()
	switch state {
	case manifestMissing, manifestUnreadable:
		return report
	case manifestCorrupt:
		c.recoverLocked("corrupt_manifest", nil)
		report.Reset = true
		return report
	}

	now := c.now()
	survivors := make([]string, 0, len(manifest))
	seen := make(map[string]bool, len(manifest))
	for _, key := range manifest {
		if seen[key] {
			continue
		}
		seen[key] = true

		raw, ok, err := c.store.Get(key)
		if err != nil {
			c.metrics.RecordDurableError("get_entry")
			c.logger.Printf("querycache_load key=%s result=skipped error=%v", key, err)
			survivors = append(survivors, key)
			continue
		}
		if !ok {
			report.Missing++
			continue
		}
		entry, err := decodeRecord(raw, key)
		if err != nil {
			c.recoverLocked("corrupt_entry", err)
			report.Reset = true
			return report
		}
		if c.expired(entry, now) {
			c.removeRecordLocked(key)
			report.Expired++
			continue
		}
		c.putLocked(key, entry)
		survivors = append(survivors, key)
	}

	if overflow := len(survivors) - c.maxSize; overflow > 0 {
		for _, key := range survivors[:overflow] {
			c.removeRecordLocked(key)
			c.deleteLocked(key)
		}
		survivors = survivors[overflow:]
		report.Trimmed = overflow
	}

	if len(survivors) != len(manifest) {
		if err := c.writeManifestLocked(survivors); err != nil {
			c.metrics.RecordDurableError("set_manifest")
			c.logger.Printf("querycache_load op=set_manifest result=error error=%v", err)
		}
	}

	report.Restored = len(c.entries)
	c.metrics.RecordEviction("expired", report.Expired)
	c.metrics.RecordEviction("fifo", report.Trimmed)
	c.metrics.SetEntries(len(c.entries))
	c.events.Log(obs.CacheEvent{Event: "load", Restored: report.Restored, Removed: report.Expired + report.Trimmed, Size: len(c.entries)})
	return report
}

// persistLocked mirrors entry into the store and appends its key to the
// manifest, evicting the oldest keys beyond maxSize.
func (c *Cache) persistLocked(entry Entry) SetOutcome {
	if c.store == nil {
		return SetMemoryOnly
	}

	payload, err := encodeRecord(entry)
	if err != nil {
		c.logger.Printf("querycache_write op=encode key=%s result=memory_only error=%v", entry.Key, err)
		return SetMemoryOnly
	}
	if err := c.store.Set(entry.Key, payload); err != nil {
		return c.writeFailedLocked("set_entry", entry.Key, err)
	}

	manifest, state := c.readManifestLocked()
	switch state {
	case manifestCorrupt:
		c.recoverLocked("corrupt_manifest", nil)
		return SetReset
	case manifestUnreadable:
		return SetMemoryOnly
	}

	if !containsKey(manifest, entry.Key) {
		manifest = append(manifest, entry.Key)
	}
	evicted := 0
	for len(manifest) > c.maxSize {
		oldest := manifest[0]
		manifest = manifest[1:]
		c.removeRecordLocked(oldest)
		c.deleteLocked(oldest)
		evicted++
	}
	c.metrics.RecordEviction("fifo", evicted)

	if err := c.writeManifestLocked(manifest); err != nil {
		return c.writeFailedLocked("set_manifest", entry.Key, err)
	}
	return SetStored
}

// dropDurableLocked removes the records for keys and prunes them from the
// manifest.
func (c *Cache) dropDurableLocked(keys []string) {
	if c.store == nil || len(keys) == 0 {
		return
	}
	for _, key := range keys {
		c.removeRecordLocked(key)
	}

	manifest, state := c.readManifestLocked()
	switch state {
	case manifestCorrupt:
		c.recoverLocked("corrupt_manifest", nil)
		return
	case manifestOK:
	default:
		return
	}
	kept := make([]string, 0, len(manifest))
	for _, key := range manifest {
		if !containsKey(keys, key) {
			kept = append(kept, key)
		}
	}
	if len(kept) == len(manifest) {
		return
	}
	if err := c.writeManifestLocked(kept); err != nil {
		c.metrics.RecordDurableError("set_manifest")
		c.logger.Printf("querycache_prune op=set_manifest result=error error=%v", err)
	}
}

func (c *Cache) readManifestLocked() ([]string, manifestState) {
	raw, ok, err := c.store.Get(c.manifestKey)
	if err != nil {
		c.metrics.RecordDurableError("get_manifest")
		c.logger.Printf("querycache_manifest op=get result=error error=%v", err)
		return nil, manifestUnreadable
	}
	if !ok {
		return []string{}, manifestMissing
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		c.logger.Printf("querycache_manifest op=decode result=corrupt error=%v", err)
		return nil, manifestCorrupt
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, manifestOK
}

func (c *Cache) writeManifestLocked(keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	payload, err := marshalJSON(keys)
	if err != nil {
		return err
	}
	return c.store.Set(c.manifestKey, string(payload))
}

func (c *Cache) removeRecordLocked(key string) {
	if err := c.store.Remove(key); err != nil {
		c.metrics.RecordDurableError("remove")
		c.logger.Printf("querycache_remove key=%s result=error error=%v", key, err)
	}
}
