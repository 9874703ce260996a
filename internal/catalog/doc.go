// ABOUTME: Package documentation for the catalog aggregator

// Package catalog pulls product lists from registered stores and serves a
// merged, filterable view. A sync replaces only the syncing store's slice
// of the catalog; other stores' products are never touched.
package catalog
