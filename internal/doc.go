// Package internal groups helpers that are private to authflow, including
// one-time code generation and constant-time secret comparison.
//
// # Sub-packages
//
//   - flows: per-controller request guard (single flight, disposal)
//   - logging: slog setup with service and trace attributes
//   - rate: Redis fixed-window failure counters for the fake backend
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
package internal
