// ABOUTME: Package documentation for the order relay

// Package relay accepts customer orders for registered stores, persists
// them centrally, and forwards a copy to the origin store on a best-effort
// basis. The hub's copy is the source of truth; a failed forward is logged
// and never fails the order.
package relay
