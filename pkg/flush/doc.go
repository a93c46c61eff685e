// Package flush turns a finished unit into one FlushRecord and delivers it
// to every matching sink exactly once.
//
// Each unit moves through Open, Closing and Flushed. Close resolves the
// final status, records any unhandled fault as an Error entry and builds
// the response snapshot; Flush assembles the record and fans it out to a
// snapshot of the sink registry. Both transitions are compare-and-swap
// guarded, so calling them again is a no-op.
//
// Sink failures and panics are isolated per sink and logged. They are
// returned from Flush for inspection but never reach the unit's caller.
package flush
