// ABOUTME: Package documentation for the store registry

// Package registry tracks the fleet of remote store servers.
//
// Stores announce themselves by POSTing a self-registration payload;
// re-registration doubles as a heartbeat and merges shallowly into the
// existing record, preserving registeredAt. A store is online while its
// last registration is more recent than the configured liveness threshold;
// listing the fleet recomputes and persists every store's status.
//
// Operators can also hand-enter a store with ManualAdd, which replaces the
// record wholesale rather than merging.
package registry
