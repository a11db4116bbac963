// Package internal documents the sitelens server internals.
//
// The internal tree is organized by responsibility:
// - urlvariant, matchcache, probe: URL matching across analytics backends
// - sources: backend adapters (search console, behavior analytics)
// - trends, scoring, reconcile: report assembly from matched snapshots
// - pagetree: canonical URL and same-site link extraction from a page
// - api, mcp: HTTP and Model Context Protocol surfaces
// - config, metrics, telemetry, audit, ids, sanitize: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
