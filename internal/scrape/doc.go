// Package scrape defines the core types shared across the ingest pipeline:
// page classification kinds, parsed case records, fetch results, the error
// taxonomy, and the interfaces the pipeline composes.
package scrape
