// ABOUTME: Package documentation for the hub orchestrator

// Package hub wires the registry, catalog aggregator and order relay
// behind a single HTTP API and manages server lifecycle, including an
// optional Tailscale (tsnet) listener for hubs that should only be
// reachable over a tailnet.
package hub
