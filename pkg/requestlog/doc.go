// Package requestlog provides the passive data structures describing a
// captured unit of work: request metadata, response metadata and the
// identity of the caller.
//
// Capture components build these values once per unit and never mutate
// them afterwards. Sinks receive them by reference through a flush record
// and must treat them as read-only.
//
// # Core Types
//
//   - RequestSnapshot: method, URL, headers, cookies, query, form, input stream, claims
//   - ResponseSnapshot: status code, headers and an optional captured body
//   - UnitContext: timing, session and machine data tying both snapshots together
//
// # Package Design
//
// This is a leaf package with no internal dependencies, allowing it to be
// imported by any package without creating import cycles.
package requestlog
