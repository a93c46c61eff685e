// Package sink defines the consumers of flush records and the registry
// the flush coordinator fans out to.
//
// A Sink receives each FlushRecord synchronously from OnFlush. Whether a
// sink is invoked at all is decided by its registration Policy: a minimum
// entry level, a minimum response status (ignored for background units)
// and an optional expression:
//
//	reg := sink.NewRegistry()
//	_, err := reg.Register("errors", jsonl.New(w), sink.Policy{
//	    MinLevel: unitlog.LevelWarning,
//	    When:     `web && status >= 500 && path startsWith "/api"`,
//	})
//
// Built-in sinks live in subpackages (file, jsonl, memory, nats, sqlite).
// Each registers a Factory under its kind so configuration can build
// sinks by name.
package sink
