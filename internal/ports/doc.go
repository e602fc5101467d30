// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// The application core depends only on these interfaces. Adapters under
// internal/adapters implement them with concrete infrastructure (DeFiLlama,
// JSON-RPC, the file system, SQLite, Redis, HTTP).
//
// # Port Interfaces
//
//   - [RateSource]: Fetches current lending rates from one provider
//   - [SnapshotRepository]: Persists the latest snapshot and agent state
//   - [HistoryStore]: Append-only store of rate observations
//   - [Cache]: Short-lived key/value cache for serialized snapshots
//   - [Publisher]: Pushes snapshots to a remote service
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [Logger]: Structured logging abstraction
package ports
