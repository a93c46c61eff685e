// Package capture builds the request snapshot of a unit from the live
// *http.Request.
//
// The Builder runs a fixed sequence of policy steps (session correlation,
// headers, cookies, query and form, identity, input stream). Each step is
// fault-isolated: a failure leaves its fields empty and never stops the
// remaining steps or the request itself.
//
// Policies are configured through Options. The defaults capture headers,
// query and form values, exclude every cookie, and read request bodies
// only for textual content types.
package capture
