// Package server implements the GoChat relay: a WebSocket hub that keeps the
// session registry, persists messages through a store.Store and fans frames
// out to every connected client.
//
// The implementation is organized into files for configuration, the hub and
// its frame dispatch, clients, the registry, routing, HTTP handlers and
// metrics.
package server
