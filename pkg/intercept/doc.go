// Package intercept buffers a handler's response so it can be captured.
//
// A Writer stands in for the real http.ResponseWriter while the handler
// runs. Nothing reaches the client until Finish replays the buffered
// status and body; at the same time the body is spooled to a uniquely
// named temporary file that Release deletes. Release must always be
// deferred so the spool never outlives the request:
//
//	iw := intercept.New(w)
//	defer func() { _ = iw.Release() }()
//	next.ServeHTTP(iw, r)
//	if err := iw.Finish(); err != nil { ... }
package intercept
