// Package mediadb persists probe results and cache locations in SQLite.
//
// The store maps each source file path to the audio format discovered by the
// prober, the container-relative stream selector chosen for extraction, and
// the cached audio file produced by the extractor. Every write is a single
// committed statement, so the database stays a consistent source of truth for
// concurrent probers and extractors. Rows are never deleted here: a row whose
// cache file has been evicted simply triggers re-extraction on the next
// request.
package mediadb
