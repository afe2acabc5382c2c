// Package rate provides Redis-backed fixed-window failure counters. The fake
// backend in authtest uses them to throttle repeated bad passwords and codes.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// <prefix>:rl:<rule>:<subject>.
//
// # What this package must NOT do
//
//   - Decide HTTP status codes or messages (callers do).
//   - Be imported outside the authflow module.
package rate
