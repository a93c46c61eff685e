// Package unitlog provides the per-unit message buffer and the flush record
// that sinks observe.
//
// A Unit is created when a unit of work starts (an HTTP request or a
// background operation). Code running inside the unit appends leveled
// entries through a Logger obtained from the request context:
//
//	log := unitlog.From(r.Context())
//	log.Info("loading user")
//	log.Category("db").Debug("query took 3ms")
//
// Entries are grouped by category in first-seen order. Nothing is ever
// removed from the buffer; when the unit completes the flush coordinator
// takes a snapshot and hands a read-only FlushRecord to every sink.
package unitlog
