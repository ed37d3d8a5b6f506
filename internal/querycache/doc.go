// Package querycache caches board listing results keyed by their query
// parameters.
//
// Reads are served from an in-memory index. Every mutation is mirrored into a
// durable.Store together with a manifest record listing the mirrored keys in
// insertion order, so a new process can rehydrate with Load. Entries expire
// lazily after MaxAge and the manifest is capped at MaxSize keys, oldest
// first out.
//
// No method returns an error. Durable failures degrade to an empty or
// memory-only cache and are reported through SetOutcome, LoadReport, the
// logger and metrics.
package querycache
